package chat

import "github.com/devanshm/campuschat-backend/internal/models"

// Timeline helpers. All of these touch Session state and therefore run
// only inside the apply loop.

// indexOf returns the timeline position of the message with the given ID,
// or -1. Both temporary and durable IDs are looked up the same way: an
// entry holds exactly one of them at a time.
func (s *Session) indexOf(id string) int {
	for i, m := range s.timeline {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// insertSorted places msg into the timeline keeping it sorted by CreatedAt
// ascending. Ties go after existing entries, so insertion order is the
// tie-break.
func (s *Session) insertSorted(msg *models.Message) {
	pos := len(s.timeline)
	for pos > 0 && s.timeline[pos-1].CreatedAt.After(msg.CreatedAt) {
		pos--
	}
	s.timeline = append(s.timeline, nil)
	copy(s.timeline[pos+1:], s.timeline[pos:])
	s.timeline[pos] = msg
}

// removeAt drops the entry at index i.
func (s *Session) removeAt(i int) {
	s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
}

// matchPending finds the oldest pending entry with the same sender,
// content and kind, the FIFO rule for absorbing an insert echo that
// arrives before the direct write acknowledgment. When a burst of
// identical sends is in flight the oldest placeholder wins; the next echo
// will match the next one.
func (s *Session) matchPending(msg *models.Message) *models.Message {
	for _, p := range s.pendingQueue {
		if p.SenderID == msg.SenderID && p.Kind == msg.Kind &&
			p.Content == msg.Content && p.AttachmentName == msg.AttachmentName {
			return p
		}
	}
	return nil
}

// dropPending removes the entry from the pending FIFO queue.
func (s *Session) dropPending(entry *models.Message) {
	for i, p := range s.pendingQueue {
		if p == entry {
			s.pendingQueue = append(s.pendingQueue[:i], s.pendingQueue[i+1:]...)
			return
		}
	}
}

// promote transitions a pending entry to its durable identity in place:
// the entry keeps its timeline position (the list stays sorted by the
// optimistic CreatedAt it was inserted under, never re-sorted by arrival)
// while adopting the store-assigned ID, timestamp and server-held fields.
// The local preview handle is replaced by the durable attachment URL. The
// transition happens exactly once; the temporary ID is recorded so a late
// write-ack for the same send is a no-op.
func (s *Session) promote(entry *models.Message, durable models.Message) {
	s.promoted[entry.ID] = durable.ID
	entry.ID = durable.ID
	entry.CreatedAt = durable.CreatedAt
	entry.IsRead = durable.IsRead
	entry.AttachmentURL = durable.AttachmentURL
	entry.LocalPreviewURL = ""
	entry.Pending = false
	s.dropPending(entry)
}
