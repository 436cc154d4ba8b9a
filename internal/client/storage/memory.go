package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryChannel is the volatile, tab-scoped store: values live only as long
// as the process and are namespaced by a per-process tab id.
type MemoryChannel struct {
	tabID string

	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryChannel returns an empty channel with a fresh tab id.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{
		tabID:   uuid.NewString(),
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// TabID returns the id namespacing this channel's keys.
func (mc *MemoryChannel) TabID() string { return mc.tabID }

// Name implements Channel.
func (mc *MemoryChannel) Name() string { return "memory" }

func (mc *MemoryChannel) key(k string) string {
	return mc.tabID + ":" + k
}

// Set implements Channel.
func (mc *MemoryChannel) Set(_ context.Context, key, value string, expires time.Time) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.entries[mc.key(key)] = entry{Value: value, Expires: expires}
	return nil
}

// Get implements Channel.
func (mc *MemoryChannel) Get(_ context.Context, key string) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	k := mc.key(key)
	e, ok := mc.entries[k]
	if !ok {
		return "", ErrNotFound
	}
	if e.expired(mc.now()) {
		delete(mc.entries, k)
		return "", ErrNotFound
	}
	return e.Value, nil
}

// Delete implements Channel.
func (mc *MemoryChannel) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.entries, mc.key(key))
	return nil
}
