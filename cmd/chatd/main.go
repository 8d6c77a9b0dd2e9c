package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	apichat "github.com/devanshm/campuschat-backend/internal/api/chat"
	"github.com/devanshm/campuschat-backend/internal/auth"
	"github.com/devanshm/campuschat-backend/internal/config"
	"github.com/devanshm/campuschat-backend/internal/middleware"
	"github.com/devanshm/campuschat-backend/internal/storage"
	"github.com/devanshm/campuschat-backend/internal/storage/memory"
	"github.com/devanshm/campuschat-backend/internal/storage/postgres"
	"github.com/devanshm/campuschat-backend/internal/ws"
)

func main() {
	cfg := config.Load()

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := postgres.NewChatStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("opening postgres store: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Println("[chatd] DATABASE_URL not set, using in-memory store")
		store = memory.NewChatStore()
	}

	hub := ws.NewHub(store)
	go hub.Run()

	handler := &apichat.Handler{Store: store, Hub: hub}

	router := mux.NewRouter()
	apichat.RegisterRoutes(router, handler)
	router.PathPrefix(cfg.UploadBaseURL + "/").Handler(
		http.StripPrefix(cfg.UploadBaseURL+"/", http.FileServer(http.Dir(cfg.UploadDir))))
	router.Use(auth.Middleware([]byte(cfg.JWTSecret)))

	log.Printf("[chatd] listening on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, middleware.CORS(cfg.AllowedOrigin)(router)))
}
