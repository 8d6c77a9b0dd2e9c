package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "VALKEY_ADDR", "JWT_SECRET", "UPLOAD_DIR", "UPLOAD_BASE_URL", "ALLOWED_ORIGIN"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, "/files", cfg.UploadBaseURL)
	assert.Equal(t, "*", cfg.AllowedOrigin)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("ALLOWED_ORIGIN", "https://campus.example.edu")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "postgres://localhost/chat", cfg.DatabaseURL)
	assert.Equal(t, "https://campus.example.edu", cfg.AllowedOrigin)
}
