package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

// FileAdapter writes each cart to <dir>/<key>.json.
type FileAdapter struct {
	dir string
	mu  sync.Mutex
}

func NewFileAdapter(dir string) *FileAdapter {
	return &FileAdapter{dir: dir}
}

func (f *FileAdapter) Load(_ context.Context, key string) ([]domain.LineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []domain.LineEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path(key), err)
	}
	return entries, nil
}

// Save writes via a temp file then rename.
func (f *FileAdapter) Save(_ context.Context, key string, entries []domain.LineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileAdapter) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileAdapter) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, safe+".json")
}
