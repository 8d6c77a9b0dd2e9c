package models

// FeedEventType discriminates change-feed events pushed by the store.
type FeedEventType string

const (
	FeedInsert FeedEventType = "insert"
	FeedUpdate FeedEventType = "update"
)

// FeedEvent is one row mutation pushed over the change feed. Inserts carry
// the full durable row; updates carry the target ID plus the patch that was
// applied, never the whole record.
type FeedEvent struct {
	Type           FeedEventType `json:"type"`
	ConversationID string        `json:"conversation_id"`
	Message        *Message      `json:"message,omitempty"`
	MessageID      string        `json:"message_id,omitempty"`
	Patch          *MessagePatch `json:"patch,omitempty"`
}
