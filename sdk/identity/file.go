package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// fileRecord is the on-disk layout:
//
//	user_key = "ue1-..."
//	updated_at = 2026-01-02T15:04:05Z
type fileRecord struct {
	UserKey   string    `toml:"user_key"`
	UpdatedAt time.Time `toml:"updated_at"`
}

// FileStore keeps the user key in a small TOML file so it survives restarts.
// Writes replace the file atomically.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.RWMutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path is the file the token is written to.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Token(context.Context) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var rec fileRecord
	if _, err := toml.DecodeFile(f.path, &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read identity file %s: %w", f.path, err)
	}
	return rec.UserKey, nil
}

func (f *FileStore) Save(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".identity-*.toml")
	if err != nil {
		return fmt.Errorf("create identity temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	rec := fileRecord{UserKey: token, UpdatedAt: f.now().UTC()}
	if err := toml.NewEncoder(tmp).Encode(rec); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close identity temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace identity file: %w", err)
	}
	return nil
}
