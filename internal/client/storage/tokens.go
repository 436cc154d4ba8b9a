package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/models"
)

const (
	// CustomerCookie is the cookie holding the customer token.
	CustomerCookie = "customer_token"
	// AdminCookie is the cookie holding the admin token.
	AdminCookie = "admin_token"

	adminMarkerKey = "admin_marker"
	adminMarkerTTL = time.Hour
)

// CookieName returns the cookie carrying role's token, or "" for an unknown role.
func CookieName(role models.Role) string {
	switch role {
	case models.RoleCustomer:
		return CustomerCookie
	case models.RoleAdmin:
		return AdminCookie
	default:
		return ""
	}
}

func durableKey(role models.Role) string {
	return "token:" + string(role)
}

// TokenStore writes a role's credential to every applicable channel and reads
// it back from the durable channel first, then the cookie. Divergent values
// across channels are not reconciled: the first present value wins.
//
// Persistence is best effort. Channel failures are logged and swallowed.
type TokenStore struct {
	durable  Channel
	cookie   Channel
	volatile Channel
	log      *zap.Logger
	now      func() time.Time
}

// NewTokenStore wires the three channels. Any channel may be nil.
func NewTokenStore(durable, cookie, volatile Channel, log *zap.Logger) *TokenStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenStore{
		durable:  durable,
		cookie:   cookie,
		volatile: volatile,
		log:      log,
		now:      time.Now,
	}
}

// Set persists cred under its role's channel set: durable and cookie for both
// roles, plus the volatile store and the admin marker for the admin role.
func (ts *TokenStore) Set(ctx context.Context, cred models.StoredCredential) {
	if !cred.Role.Valid() || cred.Token == "" {
		ts.log.Warn("refusing to store credential", zap.String("role", cred.Role.String()))
		return
	}

	ts.write(ctx, ts.durable, durableKey(cred.Role), cred.Token, cred.ExpiryHint)
	ts.write(ctx, ts.cookie, CookieName(cred.Role), cred.Token, cred.ExpiryHint)

	if cred.Role == models.RoleAdmin {
		ts.write(ctx, ts.volatile, AdminCookie, cred.Token, cred.ExpiryHint)

		markerExpiry := ts.now().Add(adminMarkerTTL)
		if !cred.ExpiryHint.IsZero() && cred.ExpiryHint.Before(markerExpiry) {
			markerExpiry = cred.ExpiryHint
		}
		ts.write(ctx, ts.volatile, adminMarkerKey, "1", markerExpiry)
	}
}

// Get returns role's token from the first channel holding one.
func (ts *TokenStore) Get(ctx context.Context, role models.Role) (string, bool) {
	if !role.Valid() {
		return "", false
	}
	if v, ok := ts.read(ctx, ts.durable, durableKey(role)); ok {
		return v, true
	}
	return ts.read(ctx, ts.cookie, CookieName(role))
}

// Clear removes role's credential from every channel.
func (ts *TokenStore) Clear(ctx context.Context, role models.Role) {
	if !role.Valid() {
		return
	}
	ts.remove(ctx, ts.durable, durableKey(role))
	ts.remove(ctx, ts.cookie, CookieName(role))
	if role == models.RoleAdmin {
		ts.remove(ctx, ts.volatile, AdminCookie)
		ts.remove(ctx, ts.volatile, adminMarkerKey)
	}
}

// AdminMarker reports whether this tab holds a live admin marker. It is a
// secondary signal only and never substitutes for a stored token.
func (ts *TokenStore) AdminMarker(ctx context.Context) bool {
	_, ok := ts.read(ctx, ts.volatile, adminMarkerKey)
	return ok
}

func (ts *TokenStore) write(ctx context.Context, ch Channel, key, value string, expires time.Time) {
	if ch == nil {
		return
	}
	if err := ch.Set(ctx, key, value, expires); err != nil {
		ts.log.Warn("credential write failed",
			zap.String("channel", ch.Name()),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (ts *TokenStore) read(ctx context.Context, ch Channel, key string) (string, bool) {
	if ch == nil {
		return "", false
	}
	v, err := ch.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			ts.log.Warn("credential read failed",
				zap.String("channel", ch.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return "", false
	}
	return v, true
}

func (ts *TokenStore) remove(ctx context.Context, ch Channel, key string) {
	if ch == nil {
		return
	}
	if err := ch.Delete(ctx, key); err != nil {
		ts.log.Warn("credential clear failed",
			zap.String("channel", ch.Name()),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
