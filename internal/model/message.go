package model

import "time"

// Message is a board post. At least one of Content, ImageData, VideoID must
// be non-empty (enforced by the board service, not the schema).
type Message struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Content   string      `json:"content"`
	ImageData string      `json:"image_data,omitempty"` // inline base64 PNG
	VideoID   string      `json:"video_id,omitempty"`   // handle задания генерации видео
	VideoURL  *string     `json:"video_url,omitempty"`  // null, пока задание не завершено
	CreatedAt time.Time   `json:"created_at"`
	Author    *UserPublic `json:"author,omitempty"`

	// Aggregates, recomputed per mutation. Never cached. Non-nil after
	// hydration so JSON carries [] and {} instead of null.
	Comments  []Comment      `json:"comments"`
	Tags      []string       `json:"tags"`
	Reactions map[string]int `json:"reactions"`
}

type Comment struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	MessageID string      `json:"message_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *UserPublic `json:"author,omitempty"`
}

// TagCount is one row of the popular-tags ranking.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
