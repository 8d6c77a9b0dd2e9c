package chat

import (
	"context"
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
)

// Edit rewrites one of the local party's own messages. The content,
// edited flag and timestamp change optimistically, then the remote update
// is issued; the feed echo of that update merges idempotently into the
// already-edited entry. On remote failure the local entry is reverted
// exactly once.
func (s *Session) Edit(ctx context.Context, id, content string) error {
	if content == "" {
		return &ValidationError{Reason: "empty content"}
	}

	var (
		prev     *models.Message
		editedAt time.Time
	)
	if err := s.do(func() {
		i := s.indexOf(id)
		if i < 0 {
			return
		}
		entry := s.timeline[i]
		if entry.SenderID != s.self || entry.Pending || entry.DeletedForEveryone {
			return
		}
		saved := *entry
		prev = &saved
		editedAt = time.Now().UTC()
		entry.Content = content
		entry.IsEdited = true
		entry.EditedAt = &editedAt
	}); err != nil {
		return err
	}
	if prev == nil {
		return &ValidationError{Reason: "message is not editable"}
	}

	edited := true
	patch := models.MessagePatch{
		Content:  &content,
		IsEdited: &edited,
		EditedAt: &editedAt,
	}
	if _, err := s.store.UpdateMessage(ctx, id, patch); err != nil {
		s.do(func() {
			if i := s.indexOf(id); i >= 0 {
				s.timeline[i].Content = prev.Content
				s.timeline[i].IsEdited = prev.IsEdited
				s.timeline[i].EditedAt = prev.EditedAt
			}
		})
		return &MutationError{Op: "edit", ID: id, Err: err}
	}
	return nil
}

// DeleteForMe hides one of the local party's own messages from their own
// view: the entry leaves the local list immediately and the sender-side
// delete flag is written remotely. The other party's view is unaffected.
// On remote failure the entry is restored.
func (s *Session) DeleteForMe(ctx context.Context, id string) error {
	var removed *models.Message
	if err := s.do(func() {
		i := s.indexOf(id)
		if i < 0 {
			return
		}
		entry := s.timeline[i]
		if entry.SenderID != s.self || entry.Pending {
			return
		}
		removed = entry
		s.removeAt(i)
	}); err != nil {
		return err
	}
	if removed == nil {
		return &ValidationError{Reason: "message cannot be deleted for self"}
	}

	deleted := true
	if _, err := s.store.UpdateMessage(ctx, id, models.MessagePatch{DeletedForSender: &deleted}); err != nil {
		s.do(func() {
			if s.indexOf(id) < 0 {
				s.insertSorted(removed)
			}
		})
		return &MutationError{Op: "delete-for-me", ID: id, Err: err}
	}
	return nil
}

// DeleteForEveryone irreversibly replaces one of the local party's own
// messages with the fixed placeholder for both parties. The local entry
// flips optimistically; the remote write rewrites the row and both views
// converge through the update feed. No handler ever clears the flag, so a
// failed remote write is reported but the local entry is NOT reverted:
// the user asked for a deletion and retrying is the only way forward.
func (s *Session) DeleteForEveryone(ctx context.Context, id string) error {
	var found bool
	if err := s.do(func() {
		i := s.indexOf(id)
		if i < 0 {
			return
		}
		entry := s.timeline[i]
		if entry.SenderID != s.self || entry.Pending {
			return
		}
		found = true
		deleted := true
		models.MessagePatch{DeletedForEveryone: &deleted}.Apply(entry)
	}); err != nil {
		return err
	}
	if !found {
		return &ValidationError{Reason: "message cannot be deleted for everyone"}
	}

	deleted := true
	if _, err := s.store.UpdateMessage(ctx, id, models.MessagePatch{DeletedForEveryone: &deleted}); err != nil {
		return &MutationError{Op: "delete-for-everyone", ID: id, Err: err}
	}
	return nil
}
