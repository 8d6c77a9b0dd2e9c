package chat

import (
	"context"
	"log"

	"github.com/devanshm/campuschat-backend/internal/models"
)

// DeliveryStatus is the tri-state read indicator for messages authored by
// the local party. It has no meaning for inbound messages.
type DeliveryStatus int

const (
	// StatusSent: the optimistic placeholder exists but no durable
	// acknowledgment has arrived yet.
	StatusSent DeliveryStatus = iota
	// StatusDelivered: the message is durable but the peer has not read it.
	StatusDelivered
	// StatusRead: the peer has read the message.
	StatusRead
)

// StatusOf reports the delivery status of an own message.
func StatusOf(m models.Message) DeliveryStatus {
	switch {
	case m.Pending:
		return StatusSent
	case m.IsRead:
		return StatusRead
	default:
		return StatusDelivered
	}
}

// markAllRead flips every inbound unread message to read. Local entries
// update optimistically in one pass; the remote side gets a single bulk
// write, and the external unread counter for the conversation resets.
// The bulk write is applied remotely by conversation and reader ID, so it
// is harmless if it lands after the user has navigated away.
func (s *Session) markAllRead(ctx context.Context) {
	var dirty bool
	if s.do(func() {
		for _, m := range s.timeline {
			if m.SenderID != s.self && !m.IsRead {
				m.IsRead = true
				dirty = true
			}
		}
	}) != nil {
		return
	}
	if s.notifier != nil {
		s.notifier.ClearUnread(s.conv.ID)
	}
	if !dirty {
		return
	}
	// The write survives the caller's context: navigation away must not
	// cancel a receipt batch already in flight.
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.store.MarkConversationRead(bg, s.conv.ID, s.self); err != nil {
			log.Printf("[chat] bulk read-mark for %s: %v", s.conv.ID, err)
		}
	}()
}
