package commerce

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/models"
)

// Backend is the commerce part of the backend API.
type Backend interface {
	Cart(ctx context.Context, userID string) ([]models.CartItem, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, userID, productID string) error
	Wishlist(ctx context.Context) ([]models.WishlistItem, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, itemID string) error
}

// SessionSource reports the signed-in user.
type SessionSource interface {
	Current() *models.Session
}

// Store owns the cart and wishlist of the current session.
//
// Concurrent operations on one collection are not ordered: whichever
// reconciling fetch lands last wins. Results of requests started under an
// earlier session, or after Close, are discarded.
type Store struct {
	backend  Backend
	sessions SessionSource
	notify   Notifier
	log      *zap.Logger

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	gen      uint64
	closed   bool
	cart     collection[models.CartItem]
	wishlist collection[models.WishlistItem]
}

// NewStore returns an empty Store. notify and log may be nil.
func NewStore(backend Backend, sessions SessionSource, notify Notifier, log *zap.Logger) *Store {
	if notify == nil {
		notify = func(Notice) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Store{
		backend:  backend,
		sessions: sessions,
		notify:   notify,
		log:      log,
		root:     root,
		cancel:   cancel,
	}
}

// SessionChanged resets state for a new session and loads its collections.
// A nil session only clears.
func (s *Store) SessionChanged(sess *models.Session) {
	s.Clear()
	if sess == nil {
		return
	}
	if err := s.Load(s.root); err != nil {
		s.log.Debug("initial commerce load failed", zap.Error(err))
	}
}

// Load fetches cart and wishlist concurrently. Each collection is replaced
// as soon as its own fetch succeeds; the first error is returned.
func (s *Store) Load(ctx context.Context) error {
	sess, gen, err := s.begin("load")
	if err != nil {
		return err
	}
	ctx, done := s.opContext(ctx)
	defer done()

	s.mu.Lock()
	if err := s.staleLocked(gen); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cart.inflight++
	s.wishlist.inflight++
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		items, err := s.backend.Cart(ctx, sess.UserID)
		return finish(s, gen, &s.cart, items, err, "load cart")
	})
	g.Go(func() error {
		items, err := s.backend.Wishlist(ctx)
		return finish(s, gen, &s.wishlist, items, err, "load wishlist")
	})
	return g.Wait()
}

// AddToCart adds quantity units of productID, then re-fetches the cart.
func (s *Store) AddToCart(ctx context.Context, productID string, quantity int) error {
	sess, gen, err := s.begin("add to cart")
	if err != nil {
		return err
	}
	if quantity < 1 {
		s.notify(Notice{Level: LevelError, Message: ErrInvalidQuantity.Error()})
		return ErrInvalidQuantity
	}
	return mutate(ctx, s, gen, &s.cart, "add to cart",
		func(ctx context.Context) error { return s.backend.AddToCart(ctx, productID, quantity) },
		func(ctx context.Context) ([]models.CartItem, error) { return s.backend.Cart(ctx, sess.UserID) },
		"Added to cart",
	)
}

// RemoveFromCart removes productID, then re-fetches the cart.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	sess, gen, err := s.begin("remove from cart")
	if err != nil {
		return err
	}
	return mutate(ctx, s, gen, &s.cart, "remove from cart",
		func(ctx context.Context) error { return s.backend.RemoveFromCart(ctx, sess.UserID, productID) },
		func(ctx context.Context) ([]models.CartItem, error) { return s.backend.Cart(ctx, sess.UserID) },
		"Removed from cart",
	)
}

// AddToWishlist adds productID, then re-fetches the wishlist.
func (s *Store) AddToWishlist(ctx context.Context, productID string) error {
	_, gen, err := s.begin("add to wishlist")
	if err != nil {
		return err
	}
	return mutate(ctx, s, gen, &s.wishlist, "add to wishlist",
		func(ctx context.Context) error { return s.backend.AddToWishlist(ctx, productID) },
		s.backend.Wishlist,
		"Added to wishlist",
	)
}

// RemoveFromWishlist removes productID, then re-fetches the wishlist. The
// backend deletes by item id, which is looked up in the last synced wishlist.
func (s *Store) RemoveFromWishlist(ctx context.Context, productID string) error {
	_, gen, err := s.begin("remove from wishlist")
	if err != nil {
		return err
	}

	itemID := s.wishlistItemID(productID)
	if itemID == "" {
		s.notify(Notice{Level: LevelError, Message: ErrNotInWishlist.Error()})
		return ErrNotInWishlist
	}
	return mutate(ctx, s, gen, &s.wishlist, "remove from wishlist",
		func(ctx context.Context) error { return s.backend.RemoveFromWishlist(ctx, itemID) },
		s.backend.Wishlist,
		"Removed from wishlist",
	)
}

// Cart returns the last synced cart.
func (s *Store) Cart() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.snapshot()
}

// Wishlist returns the last synced wishlist.
func (s *Store) Wishlist() []models.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlist.snapshot()
}

// CartCount is the sum of quantities in the last synced cart.
func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartCount(s.cart.items)
}

// WishlistCount is the number of entries in the last synced wishlist.
func (s *Store) WishlistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wishlist.items)
}

// IsInCart reports whether the last synced cart holds productID. It does not
// reflect mutations still in flight.
func (s *Store) IsInCart(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.cart.items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// IsInWishlist reports whether the last synced wishlist holds productID.
func (s *Store) IsInWishlist(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.wishlist.items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// CartStatus returns the cart's sync state.
func (s *Store) CartStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.status()
}

// WishlistStatus returns the wishlist's sync state.
func (s *Store) WishlistStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlist.status()
}

// Clear drops both collections. Requests still in flight are discarded when
// they return.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cart = collection[models.CartItem]{}
	s.wishlist = collection[models.WishlistItem]{}
}

// Close cancels requests in flight and rejects further operations.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.cart.inflight = 0
	s.wishlist.inflight = 0
	s.mu.Unlock()
	s.cancel()
}

// begin checks that the store is open and a session is seated, and captures
// the generation that later results must still match.
func (s *Store) begin(op string) (*models.Session, uint64, error) {
	s.mu.Lock()
	closed, gen := s.closed, s.gen
	s.mu.Unlock()
	if closed {
		return nil, 0, ErrClosed
	}

	sess := s.sessions.Current()
	if sess == nil || !sess.Role.Valid() {
		s.log.Debug("commerce operation without session", zap.String("op", op))
		s.notify(Notice{Level: LevelInfo, Message: "Please sign in to continue"})
		return nil, 0, ErrUnauthenticated
	}
	return sess, gen, nil
}

// opContext ties ctx to the store's lifetime.
func (s *Store) opContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.root, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Store) wishlistItemID(productID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.wishlist.items {
		if it.ProductID == productID {
			return it.ID
		}
	}
	return ""
}

// staleLocked reports whether results for gen must be discarded.
func (s *Store) staleLocked(gen uint64) error {
	if s.closed {
		return ErrClosed
	}
	if s.gen != gen {
		return ErrStale
	}
	return nil
}

// mutate runs one mutation followed by its reconciling fetch. State is
// replaced only when both succeed.
func mutate[T any](
	ctx context.Context,
	s *Store,
	gen uint64,
	c *collection[T],
	op string,
	mutation func(context.Context) error,
	fetch func(context.Context) ([]T, error),
	success string,
) error {
	ctx, done := s.opContext(ctx)
	defer done()

	s.mu.Lock()
	if err := s.staleLocked(gen); err != nil {
		s.mu.Unlock()
		return err
	}
	c.inflight++
	s.mu.Unlock()

	if err := mutation(ctx); err != nil {
		return finish[T](s, gen, c, nil, err, op)
	}
	items, fetchErr := fetch(ctx)
	if err := finish(s, gen, c, items, fetchErr, op); err != nil {
		return err
	}
	s.notify(Notice{Level: LevelInfo, Message: success})
	return nil
}

// finish applies one request's outcome to c unless the session moved on.
// A stale request leaves inflight alone: Clear and Close already reset it.
func finish[T any](s *Store, gen uint64, c *collection[T], items []T, err error, op string) error {
	s.mu.Lock()
	if stale := s.staleLocked(gen); stale != nil {
		s.mu.Unlock()
		s.log.Debug("discarding stale result", zap.String("op", op), zap.Error(stale))
		return stale
	}
	c.inflight--
	if err == nil {
		c.replace(items)
		s.mu.Unlock()
		return nil
	}
	if !c.loaded {
		c.err = err
	}
	s.mu.Unlock()

	s.log.Warn("commerce request failed", zap.String("op", op), zap.Error(err))
	s.notify(Notice{Level: LevelError, Message: noticeMessage(op, err)})
	return fmt.Errorf("%s: %w", op, err)
}

func noticeMessage(op string, err error) string {
	var fe *api.FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fmt.Sprintf("Could not %s: %s", op, fe.Message)
	}
	return fmt.Sprintf("Could not %s", op)
}
