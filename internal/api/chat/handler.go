package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/devanshm/campuschat-backend/internal/auth"
	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/storage"
	"github.com/devanshm/campuschat-backend/internal/ws"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Handler holds the dependencies for the chat HTTP and WebSocket API.
type Handler struct {
	Store storage.Store
	Hub   *ws.Hub
}

// StartConversation finds or creates the conversation between the caller
// and the named counterpart. Idempotent: racing calls from two tabs both
// land on the same row.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		StudentID string `json:"student_id"`
		FacultyID string `json:"faculty_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.StudentID == "" || req.FacultyID == "" {
		http.Error(w, "Student ID and Faculty ID are required", http.StatusBadRequest)
		return
	}
	if claims.UserID != req.StudentID && claims.UserID != req.FacultyID {
		http.Error(w, "Caller is not a participant", http.StatusForbidden)
		return
	}

	conv, err := h.Store.GetOrCreateConversation(r.Context(), req.StudentID, req.FacultyID)
	if err != nil {
		log.Printf("[chat] starting conversation: %v", err)
		http.Error(w, "Failed to start conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListMessages returns the conversation's messages in canonical order.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conv, claims, ok := h.conversationFor(w, r)
	if !ok {
		return
	}
	msgs, err := h.Store.ListMessages(r.Context(), conv.ID)
	if err != nil {
		log.Printf("[chat] listing messages for %s: %v", conv.ID, err)
		http.Error(w, "Failed to list messages", http.StatusInternalServerError)
		return
	}
	// Delete-for-self rows stay hidden from their sender only.
	visible := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.DeletedForSender && m.SenderID == claims.UserID {
			continue
		}
		visible = append(visible, m)
	}
	writeJSON(w, http.StatusOK, visible)
}

// SendMessage inserts a message authored by the caller.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conv, claims, ok := h.conversationFor(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind           models.MessageKind    `json:"kind"`
		Content        string                `json:"content"`
		AttachmentURL  string                `json:"attachment_url"`
		AttachmentName string                `json:"attachment_name"`
		AttachmentSize int64                 `json:"attachment_size"`
		ReplyTo        *models.ReplySnapshot `json:"reply_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindText
	}
	if !req.Kind.Valid() {
		http.Error(w, "Unknown message kind", http.StatusBadRequest)
		return
	}
	if req.Kind == models.KindText && req.Content == "" {
		http.Error(w, "Content cannot be empty", http.StatusBadRequest)
		return
	}
	if req.Kind != models.KindText && req.AttachmentURL == "" {
		http.Error(w, "Attachment URL is required", http.StatusBadRequest)
		return
	}

	msg, err := h.Store.InsertMessage(r.Context(), models.Message{
		ConversationID: conv.ID,
		SenderID:       claims.UserID,
		Kind:           req.Kind,
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
		AttachmentSize: req.AttachmentSize,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		log.Printf("[chat] sending message in %s: %v", conv.ID, err)
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// UpdateMessage applies a patch to a message, enforcing who may touch
// which fields: content, edit flags and delete flags belong to the
// sender; the read flag belongs to the other party. Delete-for-everyone
// is irreversible; a patch clearing it is rejected outright.
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	var patch models.MessagePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if patch.IsZero() {
		http.Error(w, "Patch touches no fields", http.StatusBadRequest)
		return
	}
	if patch.DeletedForEveryone != nil && !*patch.DeletedForEveryone {
		http.Error(w, "Delete-for-everyone cannot be cleared", http.StatusBadRequest)
		return
	}

	msg, err := h.Store.GetMessage(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		log.Printf("[chat] loading message %s: %v", id, err)
		http.Error(w, "Failed to load message", http.StatusInternalServerError)
		return
	}
	conv, err := h.Store.GetConversation(r.Context(), msg.ConversationID)
	if err != nil || !conv.HasParticipant(claims.UserID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	senderFields := patch.Content != nil || patch.IsEdited != nil || patch.EditedAt != nil ||
		patch.DeletedForSender != nil || patch.DeletedForEveryone != nil
	if senderFields && msg.SenderID != claims.UserID {
		http.Error(w, "Only the sender may modify a message", http.StatusForbidden)
		return
	}
	if patch.IsRead != nil && msg.SenderID == claims.UserID {
		http.Error(w, "Senders cannot mark their own messages read", http.StatusForbidden)
		return
	}

	updated, err := h.Store.UpdateMessage(r.Context(), id, patch)
	if err != nil {
		log.Printf("[chat] updating message %s: %v", id, err)
		http.Error(w, "Failed to update message", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// MarkRead flips every inbound unread message in the conversation to
// read, in one bulk write.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conv, claims, ok := h.conversationFor(w, r)
	if !ok {
		return
	}
	n, err := h.Store.MarkConversationRead(r.Context(), conv.ID, claims.UserID)
	if err != nil {
		log.Printf("[chat] bulk read-mark for %s: %v", conv.ID, err)
		http.Error(w, "Failed to mark conversation read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS streams the conversation's change feed to the caller. One feed
// subscription per conversation lives in the hub regardless of how many
// clients are attached.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conv, claims, ok := h.conversationFor(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &ws.Client{
		UserID:         claims.UserID,
		ConversationID: conv.ID,
		Send:           make(chan []byte, 256),
		Conn:           conn,
	}
	h.Hub.Register <- client

	// Read pump: the feed is one-way, so inbound frames are drained only
	// to detect the close.
	go func() {
		defer func() {
			h.Hub.Unregister <- client
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	// Write pump.
	go func() {
		for message := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
		conn.Close()
	}()
}

// conversationFor loads the conversation from the route and checks the
// caller is a participant.
func (h *Handler) conversationFor(w http.ResponseWriter, r *http.Request) (*models.Conversation, *auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}
	conv, err := h.Store.GetConversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return nil, nil, false
		}
		log.Printf("[chat] loading conversation: %v", err)
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return nil, nil, false
	}
	if !conv.HasParticipant(claims.UserID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, nil, false
	}
	return conv, claims, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
