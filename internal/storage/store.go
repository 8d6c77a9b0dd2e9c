package storage

import (
	"context"
	"errors"

	"github.com/devanshm/campuschat-backend/internal/models"
)

// ErrNotFound is returned when a conversation or message does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrPermissionDenied is returned when the caller is not allowed to touch
// the row, e.g. editing another party's message. Not retry-safe.
var ErrPermissionDenied = errors.New("storage: permission denied")

// Store is the message store adapter: remote CRUD plus a change feed for
// row mutations. All writes are single-row. Implementations must deliver
// every insert and update for a conversation to each of its subscribers,
// including the echo of the subscriber's own writes.
type Store interface {
	// GetOrCreateConversation finds the conversation between the two
	// parties or creates it. The pair is unordered for lookup purposes,
	// and the call is idempotent under concurrent racing creates: a
	// uniqueness conflict is resolved by re-fetching, never surfaced.
	GetOrCreateConversation(ctx context.Context, studentID, facultyID string) (*models.Conversation, error)

	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	GetMessage(ctx context.Context, id string) (*models.Message, error)

	// ListMessages returns the conversation's messages ordered by
	// created-at ascending, insertion order breaking ties.
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	// InsertMessage persists the message and returns the durable row with
	// its store-assigned ID and timestamp.
	InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error)

	// UpdateMessage applies the patch to the message and returns the
	// updated row.
	UpdateMessage(ctx context.Context, id string, patch models.MessagePatch) (*models.Message, error)

	// MarkConversationRead flags every unread message in the conversation
	// not authored by readerID as read, in one bulk write. Returns the
	// number of messages flipped.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int, error)

	// Subscribe registers fn to receive every insert and update event for
	// the conversation until the subscription is closed. fn must not
	// block; it is invoked from the store's delivery goroutine.
	Subscribe(conversationID string, fn func(models.FeedEvent)) (Subscription, error)
}

// Subscription is a live change-feed registration. Close is idempotent and
// releases the registration deterministically: after Close returns, fn
// receives no further events.
type Subscription interface {
	Close() error
}
