package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Addr          string
	DatabaseURL   string // empty -> in-memory store
	ValkeyAddr    string // empty -> notifications disabled
	JWTSecret     string
	UploadDir     string
	UploadBaseURL string
	AllowedOrigin string
}

// Load reads .env if present, then the environment, with dev defaults.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:          ":" + envOrDefault("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		ValkeyAddr:    os.Getenv("VALKEY_ADDR"),
		JWTSecret:     envOrDefault("JWT_SECRET", "dev-secret-change-me"),
		UploadDir:     envOrDefault("UPLOAD_DIR", "./uploads"),
		UploadBaseURL: envOrDefault("UPLOAD_BASE_URL", "/files"),
		AllowedOrigin: envOrDefault("ALLOWED_ORIGIN", "*"),
	}
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
