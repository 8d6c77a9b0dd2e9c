package chat

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/storage"
)

// Uploader is the file storage collaborator. Upload returns the durable
// URL for the attachment bytes.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Notifier is the notification dispatcher collaborator. It owns the
// user-toggleable enablement flag and the external unread counters; the
// core calls it unconditionally for foreign inserts and never for
// self-originated echoes.
type Notifier interface {
	Notify(title, preview, conversationID string)
	ClearUnread(conversationID string)
}

// PreviewLimit is the truncation length for notification previews and
// reply snapshots.
const PreviewLimit = 80

// truncate bounds s to PreviewLimit runes.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewLimit {
		return s
	}
	return string(runes[:PreviewLimit-1]) + "…"
}

// Options configures a Session.
type Options struct {
	Store    storage.Store
	Uploader Uploader // required only when sending attachments
	Notifier Notifier // optional

	// SelfID is the local party. It must be one of the two participants;
	// every handler receives identity from here, never from ambient state.
	SelfID    string
	StudentID string
	FacultyID string
}

// Session is one party's live view of a single conversation. It owns the
// canonical message list and reconciles the three event sources that feed
// it (optimistic local writes, direct write acknowledgments, and pushed
// change-feed events) into one duplicate-free, ordered timeline.
//
// All timeline mutations funnel through a single apply loop, so handlers
// are serialized by construction and every reader observes a consistent
// snapshot. Network calls never run inside the loop.
type Session struct {
	store    storage.Store
	uploader Uploader
	notifier Notifier

	self string
	conv models.Conversation

	// Loop-owned state. Touched only from inside run().
	timeline     []*models.Message
	pendingQueue []*models.Message // pending sends, oldest first
	promoted     map[string]string // temporary ID -> durable ID
	focused      bool

	sub       storage.Subscription
	commands  chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// Open resolves the conversation between the two parties (creating it on
// first contact), subscribes to its change feed, loads message history,
// and marks everything inbound as read.
//
// The subscription is established before history is loaded: any event
// that lands in between is absorbed by the same dedup path that handles
// live inserts, so nothing is lost or duplicated.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, &ValidationError{Reason: "store is required"}
	}
	if opts.SelfID != opts.StudentID && opts.SelfID != opts.FacultyID {
		return nil, &ValidationError{Reason: "self is not a participant"}
	}

	conv, err := opts.Store.GetOrCreateConversation(ctx, opts.StudentID, opts.FacultyID)
	if err != nil {
		return nil, fmt.Errorf("chat: resolving conversation: %w", err)
	}

	s := &Session{
		store:    opts.Store,
		uploader: opts.Uploader,
		notifier: opts.Notifier,
		self:     opts.SelfID,
		conv:     *conv,
		promoted: make(map[string]string),
		focused:  true,
		commands: make(chan func(), 64),
		done:     make(chan struct{}),
	}
	go s.run()

	sub, err := opts.Store.Subscribe(conv.ID, s.onFeedEvent)
	if err != nil {
		s.stop()
		return nil, fmt.Errorf("chat: subscribing to conversation %s: %w", conv.ID, err)
	}
	s.sub = sub

	history, err := opts.Store.ListMessages(ctx, conv.ID)
	if err != nil {
		sub.Close()
		s.stop()
		return nil, fmt.Errorf("chat: loading messages for %s: %w", conv.ID, err)
	}
	if err := s.do(func() {
		for i := range history {
			s.seed(history[i])
		}
	}); err != nil {
		sub.Close()
		return nil, err
	}

	s.markAllRead(ctx)
	return s, nil
}

// run is the apply loop. Every timeline mutation executes here, one at a
// time, in submission order.
func (s *Session) run() {
	for {
		select {
		case fn := <-s.commands:
			fn()
		case <-s.done:
			return
		}
	}
}

// do posts fn to the apply loop and waits for it to finish.
func (s *Session) do(fn func()) error {
	executed := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(executed) }:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-executed:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// seed merges one history row into the timeline during Open. It shares
// the dedup rules of the live insert path but fires no receipts and no
// notifications; the bulk read-mark that follows covers receipts.
func (s *Session) seed(msg models.Message) {
	if msg.DeletedForSender && msg.SenderID == s.self {
		return
	}
	if s.indexOf(msg.ID) >= 0 {
		return
	}
	m := msg
	s.insertSorted(&m)
}

// Conversation returns the resolved conversation.
func (s *Session) Conversation() models.Conversation {
	return s.conv
}

// SelfID returns the local party's identity.
func (s *Session) SelfID() string {
	return s.self
}

// Snapshot returns a copy of the canonical message list in display order.
func (s *Session) Snapshot() []models.Message {
	var out []models.Message
	s.do(func() {
		out = make([]models.Message, len(s.timeline))
		for i, m := range s.timeline {
			out[i] = *m
		}
	})
	return out
}

// Focus marks the conversation as visible again and flushes read state
// for anything that arrived while blurred.
func (s *Session) Focus(ctx context.Context) {
	if s.do(func() { s.focused = true }) != nil {
		return
	}
	s.markAllRead(ctx)
}

// Blur marks the conversation as no longer visible; live inserts stop
// being auto-read until Focus.
func (s *Session) Blur() {
	s.do(func() { s.focused = false })
}

// Close tears down the feed subscription and stops the apply loop.
// Idempotent. In-flight writes are not cancelled; if one lands after
// Close it is applied remotely by durable ID and simply never reaches
// this session's (now gone) local list.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			if err := s.sub.Close(); err != nil {
				log.Printf("[chat] closing subscription for %s: %v", s.conv.ID, err)
			}
		}
		close(s.done)
	})
	return nil
}

// stop halts the apply loop during a failed Open, before the session ever
// reaches the caller.
func (s *Session) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}
