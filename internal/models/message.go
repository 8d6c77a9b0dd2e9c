package models

import "time"

// MessageKind discriminates the message payload variants. Every consumer
// (renderer, notification preview, reply snapshot) switches on it
// exhaustively instead of sniffing optional fields.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}

// DeletedPlaceholder is the content every party sees once a message has been
// deleted for everyone. The rewrite is irreversible.
const DeletedPlaceholder = "This message was deleted"

// ReplySnapshot is a denormalized copy of the message being replied to,
// captured at send time. It is never re-resolved from the live message:
// later edits or deletes of the original leave the snapshot untouched.
type ReplySnapshot struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Preview   string `json:"preview"`
}

// Message is one entry in a conversation. A message starts life with either
// a client-generated temporary ID (Pending=true, optimistic send) or a
// store-assigned durable ID (inbound feed insert). The transition
// temporary->durable happens exactly once and never reverses.
//
// Pending and LocalPreviewURL are client-side only and never cross the wire.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	Kind           MessageKind `json:"kind"`
	Content        string      `json:"content"`

	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	AttachmentSize int64  `json:"attachment_size,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	IsRead    bool       `json:"is_read"`
	IsEdited  bool       `json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`

	// DeletedForSender hides the message from the sender's own view only.
	// DeletedForEveryone replaces the content with DeletedPlaceholder for
	// both parties. Messages are never hard-deleted, only flagged.
	DeletedForSender   bool `json:"deleted_for_sender"`
	DeletedForEveryone bool `json:"deleted_for_everyone"`

	ReplyTo *ReplySnapshot `json:"reply_to,omitempty"`

	Pending         bool   `json:"-"`
	LocalPreviewURL string `json:"-"`
}

// MessagePatch is the explicit set of fields an update may touch. A merge
// only overwrites fields that are non-nil here; everything else on the
// target, including client-local fields, is preserved.
type MessagePatch struct {
	Content            *string    `json:"content,omitempty"`
	AttachmentURL      *string    `json:"attachment_url,omitempty"`
	IsRead             *bool      `json:"is_read,omitempty"`
	IsEdited           *bool      `json:"is_edited,omitempty"`
	EditedAt           *time.Time `json:"edited_at,omitempty"`
	DeletedForSender   *bool      `json:"deleted_for_sender,omitempty"`
	DeletedForEveryone *bool      `json:"deleted_for_everyone,omitempty"`
}

// IsZero reports whether the patch touches no fields.
func (p MessagePatch) IsZero() bool {
	return p.Content == nil && p.AttachmentURL == nil && p.IsRead == nil &&
		p.IsEdited == nil && p.EditedAt == nil &&
		p.DeletedForSender == nil && p.DeletedForEveryone == nil
}

// Apply merges the patch into m. Only declared fields are overwritten, and
// DeletedForEveryone is monotonic: once set on the target, no patch clears
// it and no patch restores the original content.
func (p MessagePatch) Apply(m *Message) {
	if p.DeletedForEveryone != nil && *p.DeletedForEveryone {
		m.DeletedForEveryone = true
	}
	if m.DeletedForEveryone {
		m.Content = DeletedPlaceholder
		m.AttachmentURL = ""
		m.AttachmentName = ""
		m.AttachmentSize = 0
	} else {
		if p.Content != nil {
			m.Content = *p.Content
		}
		if p.AttachmentURL != nil {
			m.AttachmentURL = *p.AttachmentURL
		}
	}
	if p.IsRead != nil {
		m.IsRead = *p.IsRead
	}
	if p.IsEdited != nil {
		m.IsEdited = *p.IsEdited
	}
	if p.EditedAt != nil {
		t := *p.EditedAt
		m.EditedAt = &t
	}
	if p.DeletedForSender != nil {
		m.DeletedForSender = *p.DeletedForSender
	}
}
