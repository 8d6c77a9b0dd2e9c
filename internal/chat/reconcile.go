package chat

import (
	"context"
	"log"

	"github.com/devanshm/campuschat-backend/internal/models"
)

// onFeedEvent is the change-feed entry point. It posts the event into the
// apply loop, so feed pushes serialize with user actions and write
// acknowledgments no matter how their goroutines interleave.
func (s *Session) onFeedEvent(ev models.FeedEvent) {
	if ev.ConversationID != s.conv.ID {
		return
	}
	switch ev.Type {
	case models.FeedInsert:
		if ev.Message == nil {
			return
		}
		msg := *ev.Message
		s.do(func() { s.applyInsert(msg) })
	case models.FeedUpdate:
		if ev.Patch == nil || ev.MessageID == "" {
			return
		}
		patch := *ev.Patch
		id := ev.MessageID
		s.do(func() { s.applyUpdate(id, patch) })
	}
}

// applyInsert merges a pushed insert into the timeline. Replaying the
// same insert is a no-op: the durable ID is already present, either from
// a previous delivery or from the write acknowledgment that won the race.
// Runs inside the loop.
func (s *Session) applyInsert(msg models.Message) {
	if s.indexOf(msg.ID) >= 0 {
		return
	}

	if msg.SenderID == s.self {
		// Echo of an own send. Absorb it into the oldest matching
		// placeholder; a no-match means the message was sent from
		// elsewhere and joins the list as a new durable entry. Either
		// way the notifier never hears about own messages.
		if entry := s.matchPending(&msg); entry != nil {
			s.promote(entry, msg)
			return
		}
		m := msg
		s.insertSorted(&m)
		return
	}

	m := msg
	s.insertSorted(&m)

	// Notify before the read-mark: markOneRead clears the external unread
	// counter, so the counter bump inside Notify must not land after it
	// and leave a stale count for an already-read message.
	if s.notifier != nil {
		s.notifier.Notify(msg.SenderID, truncate(previewFor(&m)), s.conv.ID)
	}
	if s.focused && !m.IsRead {
		s.markOneRead(m.ID)
	}
}

// previewFor renders the notification preview per message kind.
func previewFor(m *models.Message) string {
	if m.DeletedForEveryone {
		return models.DeletedPlaceholder
	}
	switch m.Kind {
	case models.KindImage:
		return "Sent a photo"
	case models.KindFile:
		if m.AttachmentName != "" {
			return "Sent a file: " + m.AttachmentName
		}
		return "Sent a file"
	default:
		return m.Content
	}
}

// applyUpdate merges a pushed update into the existing entry. Only the
// declared patch fields are overwritten; locally-held fields such as the
// attachment preview survive. Unknown IDs are ignored: the row belongs
// to a message this view never held (for example one already hidden by
// delete-for-self). Replays converge to the same state. Runs inside the
// loop.
func (s *Session) applyUpdate(id string, patch models.MessagePatch) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	entry := s.timeline[i]
	patch.Apply(entry)

	// Delete-for-self hides the row from the sender's own list only.
	// When the flagged sender is this party (same account, another tab)
	// the entry leaves the local list; the other party never gets here
	// with a visibility change.
	if entry.DeletedForSender && entry.SenderID == s.self {
		s.dropPending(entry)
		s.removeAt(i)
	}
}

// markOneRead flags a single live inbound message as read: locally right
// away, remotely by durable ID in the background. No batching delay.
// Runs inside the loop.
func (s *Session) markOneRead(id string) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.timeline[i].IsRead = true

	read := true
	go func() {
		if _, err := s.store.UpdateMessage(context.Background(), id, models.MessagePatch{IsRead: &read}); err != nil {
			log.Printf("[chat] marking message %s read: %v", id, err)
		}
	}()
	if s.notifier != nil {
		s.notifier.ClearUnread(s.conv.ID)
	}
}
