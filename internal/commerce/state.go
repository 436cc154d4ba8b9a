// Package commerce keeps the cart and wishlist of the signed-in user in step
// with the backend. Local copies are never edited in place: every successful
// mutation is followed by a full re-fetch that replaces them.
package commerce

import (
	"errors"
	"fmt"

	"github.com/atinyakov/GophShop/internal/models"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in user.
	ErrUnauthenticated = errors.New("please sign in")
	// ErrInvalidQuantity is returned for cart quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrNotInWishlist is returned when removing a product the last synced
	// wishlist does not hold.
	ErrNotInWishlist = errors.New("product is not in the wishlist")
	// ErrStale is returned when the session changed while a request was in
	// flight; its result was discarded.
	ErrStale = errors.New("session changed, result discarded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("commerce store closed")
)

// State is the sync state of one collection.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a collection's state. Err is set only in StateFailed.
type Status struct {
	State State
	Err   error
}

// Level grades a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notice is a dismissible user-facing message.
type Notice struct {
	Level   Level
	Message string
}

// Notifier receives notices. It must not call back into the Store.
type Notifier func(Notice)

// collection is the last synced copy of one backend list. It is Loading while
// any request for it is in flight, Ready once any fetch succeeded, and Failed
// when it was never fetched and the last attempt failed.
type collection[T any] struct {
	items    []T
	loaded   bool
	inflight int
	err      error
}

func (c *collection[T]) status() Status {
	switch {
	case c.inflight > 0:
		return Status{State: StateLoading}
	case c.loaded:
		return Status{State: StateReady}
	case c.err != nil:
		return Status{State: StateFailed, Err: c.err}
	default:
		return Status{State: StateUninitialized}
	}
}

func (c *collection[T]) replace(items []T) {
	c.items = append([]T(nil), items...)
	c.loaded = true
	c.err = nil
}

func (c *collection[T]) snapshot() []T {
	return append([]T(nil), c.items...)
}

func cartCount(items []models.CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
