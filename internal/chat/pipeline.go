package chat

import (
	"context"
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/google/uuid"
)

// Attachment is the payload for image and file sends. LocalRef is a
// client-side handle (blob URL, temp path) rendered as the preview until
// the upload resolves to a durable URL.
type Attachment struct {
	Name     string
	Data     []byte
	LocalRef string
}

// Draft is everything the user typed. A failed send hands the draft back
// inside SendError so the caller can restore it to a retry buffer.
type Draft struct {
	Content    string
	Kind       models.MessageKind
	Attachment *Attachment
	ReplyToID  string // durable ID of the message being replied to, if any
}

// Send runs the optimistic pipeline: validate, insert a pending
// placeholder (immediately visible), upload the attachment if any, submit
// the write, then reconcile the acknowledgment against the placeholder.
//
// Failure after the placeholder is inserted rolls it back exactly once
// and returns a SendError carrying the draft. If the insert echo from the
// change feed absorbed the placeholder before the acknowledgment arrived,
// the acknowledgment is a no-op.
func (s *Session) Send(ctx context.Context, draft Draft) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	if draft.Kind != models.KindText && s.uploader == nil {
		return &ValidationError{Reason: "no uploader configured for attachment sends"}
	}

	pending := models.Message{
		ID:             uuid.NewString(),
		ConversationID: s.conv.ID,
		SenderID:       s.self,
		Kind:           draft.Kind,
		Content:        draft.Content,
		CreatedAt:      time.Now().UTC(),
		Pending:        true,
	}
	if draft.Attachment != nil {
		pending.AttachmentName = draft.Attachment.Name
		pending.AttachmentSize = int64(len(draft.Attachment.Data))
		pending.LocalPreviewURL = draft.Attachment.LocalRef
	}
	tempID := pending.ID

	if err := s.do(func() {
		if draft.ReplyToID != "" {
			pending.ReplyTo = s.snapshotReply(draft.ReplyToID)
		}
		entry := pending
		s.insertSorted(&entry)
		s.pendingQueue = append(s.pendingQueue, &entry)
	}); err != nil {
		return err
	}

	// Network from here on; the placeholder is already visible.
	wire := pending
	if draft.Attachment != nil {
		url, err := s.uploader.Upload(ctx, draft.Attachment.Name, draft.Attachment.Data)
		if err != nil {
			s.rollback(tempID)
			return &SendError{Draft: draft, Err: err}
		}
		wire.AttachmentURL = url
	}
	wire.Pending = false
	wire.LocalPreviewURL = ""

	durable, err := s.store.InsertMessage(ctx, wire)
	if err != nil {
		s.rollback(tempID)
		return &SendError{Draft: draft, Err: err}
	}

	s.do(func() { s.acknowledge(tempID, *durable) })
	return nil
}

// validateDraft rejects malformed drafts before any placeholder or
// network call exists.
func validateDraft(draft Draft) error {
	if !draft.Kind.Valid() {
		return &ValidationError{Reason: "unknown message kind"}
	}
	switch draft.Kind {
	case models.KindText:
		if draft.Content == "" {
			return &ValidationError{Reason: "empty content"}
		}
	default:
		if draft.Attachment == nil || len(draft.Attachment.Data) == 0 {
			return &ValidationError{Reason: "attachment payload missing"}
		}
	}
	return nil
}

// snapshotReply captures the denormalized reply snapshot from the live
// message at send time. The snapshot is immutable afterwards: later edits
// or deletes of the original never touch it. Runs inside the loop.
func (s *Session) snapshotReply(id string) *models.ReplySnapshot {
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	target := s.timeline[i]
	return &models.ReplySnapshot{
		MessageID: target.ID,
		SenderID:  target.SenderID,
		Preview:   truncate(target.Content),
	}
}

// acknowledge reconciles the direct write acknowledgment with the
// placeholder. If the feed echo already promoted it (the placeholder now
// lives under the durable ID) this is a no-op; the entry must never
// appear twice. An echo that arrived before the placeholder existed to
// absorb it sits in the timeline as its own durable entry, and then the
// durable row wins: the placeholder is dropped, not promoted. Runs
// inside the loop.
func (s *Session) acknowledge(tempID string, durable models.Message) {
	if _, done := s.promoted[tempID]; done {
		return
	}
	i := s.indexOf(tempID)
	if i < 0 {
		return
	}
	entry := s.timeline[i]
	if s.indexOf(durable.ID) >= 0 {
		s.promoted[tempID] = durable.ID
		s.dropPending(entry)
		s.removeAt(i)
		return
	}
	s.promote(entry, durable)
}

// rollback removes the pending placeholder after a failed send. Guarded
// so it runs exactly once per placeholder: a second call for the same
// temporary ID finds nothing and touches nothing.
func (s *Session) rollback(tempID string) {
	s.do(func() {
		i := s.indexOf(tempID)
		if i < 0 || !s.timeline[i].Pending {
			return
		}
		s.dropPending(s.timeline[i])
		s.removeAt(i)
	})
}
