// Package storage persists session tokens across several independent
// credential channels and reads them back in a fixed priority order.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Channel.Get when no live value is stored under key.
var ErrNotFound = errors.New("credential not found")

// Channel is one storage mechanism able to hold tokens under string keys.
// Implementations must be safe for concurrent use.
type Channel interface {
	// Name identifies the channel in logs.
	Name() string
	// Set stores value under key. A zero expires means no expiry.
	Set(ctx context.Context, key, value string, expires time.Time) error
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// entry is a stored value with its optional expiry.
type entry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}
