package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend stores each record as a file under a root directory, one file
// per key. Writes are atomic (temp file + rename) so a crash mid-write never
// leaves a half-written record behind.
type FileBackend struct {
	root string
}

// NewFileBackend creates the root directory if needed and returns a backend
// rooted there.
func NewFileBackend(root string) (*FileBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("file backend: root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorageUnavailable, root, err)
	}
	return &FileBackend{root: root}, nil
}

func (b *FileBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || filepath.Clean(key) != key {
		return "", fmt.Errorf("file backend: invalid key %q", key)
	}
	return filepath.Join(b.root, key+".json"), nil
}

func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	path, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorageUnavailable, key, err)
	}
	return data, nil
}

func (b *FileBackend) Put(ctx context.Context, key string, data []byte) error {
	_ = ctx
	path, err := b.path(key)
	if err != nil {
		return err
	}
	// Atomic write: temp file in the same directory, then rename.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorageUnavailable, key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (b *FileBackend) Delete(ctx context.Context, key string) error {
	_ = ctx
	path, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (b *FileBackend) UsedBytes(ctx context.Context) (int64, error) {
	_ = ctx
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return 0, fmt.Errorf("%w: read dir: %w", ErrStorageUnavailable, err)
	}
	var used int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		used += info.Size()
	}
	return used, nil
}

func (b *FileBackend) Close() error { return nil }
