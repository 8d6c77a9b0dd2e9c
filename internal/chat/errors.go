package chat

import (
	"errors"
	"fmt"

	"github.com/devanshm/campuschat-backend/internal/storage"
)

// ErrClosed is returned by every operation on a closed Session.
var ErrClosed = errors.New("chat: session closed")

// ValidationError rejects a request before any network call is made.
// Nothing is inserted locally, so there is nothing to roll back.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "chat: invalid request: " + e.Reason
}

// SendError reports a failed optimistic send. By the time the caller sees
// it the local placeholder has been rolled back exactly once, and Draft
// carries the original content so the caller can offer a retry; the
// message is never silently lost.
//
// Use errors.Is(err, storage.ErrPermissionDenied) to distinguish a denied
// write (not retry-safe) from a transient network failure (retry-safe).
type SendError struct {
	Draft Draft
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("chat: send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether resending the draft may succeed.
func (e *SendError) Retryable() bool {
	return !errors.Is(e.Err, storage.ErrPermissionDenied) &&
		!errors.Is(e.Err, storage.ErrNotFound)
}

// MutationError reports a failed edit or delete. The optimistic local
// change has been reverted exactly once before the caller sees it.
type MutationError struct {
	Op  string // "edit", "delete-for-me", "delete-for-everyone"
	ID  string // durable message ID
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("chat: %s of message %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
