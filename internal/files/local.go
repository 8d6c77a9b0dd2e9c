package files

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// LocalStore stores attachment blobs on disk, named by content digest, and
// serves them under a base URL. Content addressing makes uploads
// idempotent: re-uploading the same bytes yields the same durable URL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the blob directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("files: creating blob dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Upload writes the blob and returns its durable URL. The original file
// extension is kept so browsers can sniff the type.
func (s *LocalStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("files: empty upload %q", name)
	}
	sum := blake2b.Sum256(data)
	blobName := hex.EncodeToString(sum[:16]) + filepath.Ext(name)
	path := filepath.Join(s.dir, blobName)
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("files: writing blob %s: %w", blobName, err)
		}
	}
	return s.baseURL + "/" + blobName, nil
}

// Dir returns the blob directory, for wiring a static file handler.
func (s *LocalStore) Dir() string {
	return s.dir
}
