package ws

import "github.com/radboard/internal/model"

type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventNewComment     EventType = "new_comment"
	EventReactionUpdate EventType = "reaction_update"
	EventVideoReady     EventType = "video_ready"
)

// OutgoingMessage is what the server pushes to viewers.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// --- Typed payloads for hot-path (avoid map[string]any allocations) ---

// NewCommentPayload is broadcast when a comment is added to a message.
type NewCommentPayload struct {
	MessageID string         `json:"message_id"`
	Comment   *model.Comment `json:"comment"`
}

// ReactionUpdatePayload carries the full recomputed counters for a message.
type ReactionUpdatePayload struct {
	MessageID string         `json:"message_id"`
	Reactions map[string]int `json:"reactions"`
}

// VideoReadyPayload is broadcast when a pending video resolves to a URL.
type VideoReadyPayload struct {
	MessageID string `json:"message_id"`
	VideoURL  string `json:"video_url"`
}
