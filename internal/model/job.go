package model

// JobState — состояние задания генерации видео у внешнего провайдера.
type JobState string

const (
	JobSubmitted  JobState = "submitted"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further state transition can occur.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}
