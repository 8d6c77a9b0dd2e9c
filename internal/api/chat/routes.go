package chat

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the chat HTTP and WebSocket routes.
func RegisterRoutes(r *mux.Router, handler *Handler) {
	r.HandleFunc("/api/v1/chat/conversations", logged(handler.StartConversation)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/chat/conversations/{id}/messages", logged(handler.ListMessages)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/chat/conversations/{id}/messages", logged(handler.SendMessage)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/chat/conversations/{id}/read", logged(handler.MarkRead)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/chat/messages/{id}", logged(handler.UpdateMessage)).Methods(http.MethodPatch)
	r.HandleFunc("/ws/chat/{id}", logged(handler.ServeWS)).Methods(http.MethodGet)
}

func logged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[chat] %s %s", r.Method, r.URL.Path)
		next(w, r)
	}
}
