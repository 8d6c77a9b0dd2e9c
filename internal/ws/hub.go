package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/storage"
	"github.com/gorilla/websocket"
)

// Client is one WebSocket consumer of a conversation's change feed.
type Client struct {
	UserID         string
	ConversationID string
	Send           chan []byte
	Conn           *websocket.Conn
}

// Hub bridges the store's change feed to WebSocket clients. It holds one
// store subscription per conversation with at least one connected client,
// created when the first client registers and closed when the last one
// leaves, so a reconnect never ends up with two live feeds delivering
// duplicates.
type Hub struct {
	store storage.Store

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan BroadcastMessage

	mu      sync.RWMutex
	clients map[string]map[*Client]bool     // conversationID -> clients
	feeds   map[string]storage.Subscription // conversationID -> store subscription
}

// BroadcastMessage is one wire-encoded feed event bound for every client
// of a conversation.
type BroadcastMessage struct {
	ConversationID string
	Data           []byte
}

// NewHub creates a Hub over the store.
func NewHub(store storage.Store) *Hub {
	return &Hub{
		store:      store,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan BroadcastMessage, 64),
		clients:    make(map[string]map[*Client]bool),
		feeds:      make(map[string]storage.Subscription),
	}
}

// Run processes registrations and fan-out. Start it once, in its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.ConversationID] == nil {
				h.clients[client.ConversationID] = make(map[*Client]bool)
			}
			h.clients[client.ConversationID][client] = true
			if _, ok := h.feeds[client.ConversationID]; !ok {
				convID := client.ConversationID
				sub, err := h.store.Subscribe(convID, func(ev models.FeedEvent) {
					data, err := json.Marshal(ev)
					if err != nil {
						log.Printf("[ws] encoding feed event for %s: %v", convID, err)
						return
					}
					h.Broadcast <- BroadcastMessage{ConversationID: convID, Data: data}
				})
				if err != nil {
					log.Printf("[ws] subscribing to %s: %v", convID, err)
				} else {
					h.feeds[convID] = sub
				}
			}
			h.mu.Unlock()
		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.ConversationID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
				}
				if len(clients) == 0 {
					delete(h.clients, client.ConversationID)
					if sub, ok := h.feeds[client.ConversationID]; ok {
						sub.Close()
						delete(h.feeds, client.ConversationID)
					}
				}
			}
			h.mu.Unlock()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.ConversationID] {
				select {
				case client.Send <- msg.Data:
				default:
					// Slow consumer; drop it rather than stall the fan-out.
					close(client.Send)
					delete(h.clients[msg.ConversationID], client)
				}
			}
			h.mu.Unlock()
		}
	}
}
