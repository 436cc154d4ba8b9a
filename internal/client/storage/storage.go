package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileChannel is the durable local credential store: a JSON file that
// survives process restarts. Every process pointing at the same path shares
// it, with last-write-wins semantics.
type FileChannel struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileChannel returns a FileChannel persisting to path.
func NewFileChannel(path string) *FileChannel {
	return &FileChannel{path: path, now: time.Now}
}

// Name implements Channel.
func (fc *FileChannel) Name() string { return "file" }

// Set implements Channel.
func (fc *FileChannel) Set(_ context.Context, key, value string, expires time.Time) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entries, err := fc.load()
	if err != nil {
		return err
	}
	entries[key] = entry{Value: value, Expires: expires}
	return fc.save(entries)
}

// Get implements Channel.
func (fc *FileChannel) Get(_ context.Context, key string) (string, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entries, err := fc.load()
	if err != nil {
		return "", err
	}
	e, ok := entries[key]
	if !ok || e.Value == "" || e.expired(fc.now()) {
		return "", ErrNotFound
	}
	return e.Value, nil
}

// Delete implements Channel.
func (fc *FileChannel) Delete(_ context.Context, key string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entries, err := fc.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return fc.save(entries)
}

func (fc *FileChannel) load() (map[string]entry, error) {
	f, err := os.Open(fc.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]entry), nil
		}
		return nil, err
	}
	defer f.Close()

	entries := make(map[string]entry)
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fc.path, err)
	}
	return entries, nil
}

// save writes through a temp file so a crash never leaves a truncated store.
func (fc *FileChannel) save(entries map[string]entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(fc.path), ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fc.path)
}
