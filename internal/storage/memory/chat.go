package memory

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/storage"
	"github.com/google/uuid"
)

// ChatStore is an in-memory implementation of storage.Store with a change
// feed. It backs the dev server and the test suites.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation // convID -> conversation
	pairIndex     map[string]string               // canonical pair key -> convID
	messages      map[string][]*models.Message    // convID -> messages in insert order
	byID          map[string]*models.Message      // messageID -> message
	convOf        map[string]string               // messageID -> convID
	feed          *storage.Bus
}

// NewChatStore creates an empty ChatStore.
func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[string]*models.Conversation),
		pairIndex:     make(map[string]string),
		messages:      make(map[string][]*models.Message),
		byID:          make(map[string]*models.Message),
		convOf:        make(map[string]string),
		feed:          storage.NewBus(),
	}
}

// pairKey canonicalizes the unordered participant pair.
func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "\x00" + pair[1]
}

// GetOrCreateConversation finds or creates the conversation for the pair.
// The pair index makes the create idempotent: two concurrent calls for the
// same pair both return the single row.
func (s *ChatStore) GetOrCreateConversation(_ context.Context, studentID, facultyID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(studentID, facultyID)
	if id, ok := s.pairIndex[key]; ok {
		conv := *s.conversations[id]
		return &conv, nil
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		StudentID: studentID,
		FacultyID: facultyID,
		CreatedAt: time.Now().UTC(),
	}
	s.conversations[conv.ID] = conv
	s.pairIndex[key] = conv.ID
	log.Printf("[store] created conversation %s (%s, %s)", conv.ID, studentID, facultyID)

	out := *conv
	return &out, nil
}

func (s *ChatStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *conv
	return &out, nil
}

func (s *ChatStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *msg
	return &out, nil
}

// ListMessages returns the conversation's messages ordered by created-at
// ascending. Insert order already matches assignment order, so the stable
// sort only reorders rows whose timestamps were set out of band.
func (s *ChatStore) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, storage.ErrNotFound
	}
	msgs := make([]models.Message, 0, len(s.messages[conversationID]))
	for _, m := range s.messages[conversationID] {
		msgs = append(msgs, *m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// InsertMessage persists the message under a store-assigned durable ID and
// timestamp, then fans the insert out to the conversation's subscribers.
func (s *ChatStore) InsertMessage(_ context.Context, msg models.Message) (*models.Message, error) {
	s.mu.Lock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}

	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	msg.Pending = false
	msg.LocalPreviewURL = ""

	stored := msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &stored)
	s.byID[stored.ID] = &stored
	s.convOf[stored.ID] = msg.ConversationID
	s.mu.Unlock()

	echo := stored
	s.feed.Publish(models.FeedEvent{
		Type:           models.FeedInsert,
		ConversationID: msg.ConversationID,
		Message:        &echo,
	})
	out := stored
	return &out, nil
}

// UpdateMessage applies the patch to the stored row and fans the update out.
// The patch itself travels on the feed, not the whole record.
func (s *ChatStore) UpdateMessage(_ context.Context, id string, patch models.MessagePatch) (*models.Message, error) {
	s.mu.Lock()

	msg, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	if patch.IsEdited != nil && *patch.IsEdited && patch.EditedAt == nil {
		now := time.Now().UTC()
		patch.EditedAt = &now
	}
	patch.Apply(msg)
	convID := s.convOf[id]
	out := *msg
	s.mu.Unlock()

	s.feed.Publish(models.FeedEvent{
		Type:           models.FeedUpdate,
		ConversationID: convID,
		MessageID:      id,
		Patch:          &patch,
	})
	return &out, nil
}

// MarkConversationRead flips every unread message not authored by readerID
// to read, emitting one update event per flipped row.
func (s *ChatStore) MarkConversationRead(_ context.Context, conversationID, readerID string) (int, error) {
	s.mu.Lock()

	if _, ok := s.conversations[conversationID]; !ok {
		s.mu.Unlock()
		return 0, storage.ErrNotFound
	}
	var flippedIDs []string
	for _, m := range s.messages[conversationID] {
		if m.SenderID == readerID || m.IsRead {
			continue
		}
		m.IsRead = true
		flippedIDs = append(flippedIDs, m.ID)
	}
	s.mu.Unlock()

	read := true
	for _, id := range flippedIDs {
		s.feed.Publish(models.FeedEvent{
			Type:           models.FeedUpdate,
			ConversationID: conversationID,
			MessageID:      id,
			Patch:          &models.MessagePatch{IsRead: &read},
		})
	}
	return len(flippedIDs), nil
}

// Subscribe registers fn for the conversation's feed. Events are delivered
// in publish order from a dedicated goroutine per subscriber.
func (s *ChatStore) Subscribe(conversationID string, fn func(models.FeedEvent)) (storage.Subscription, error) {
	return s.feed.Subscribe(conversationID, fn), nil
}
