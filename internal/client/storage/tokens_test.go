package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http/cookiejar"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atinyakov/GophShop/internal/models"
)

// brokenChannel fails every operation, like disabled browser storage.
type brokenChannel struct{}

func (brokenChannel) Name() string { return "broken" }
func (brokenChannel) Set(context.Context, string, string, time.Time) error {
	return errors.New("storage disabled")
}
func (brokenChannel) Get(context.Context, string) (string, error) {
	return "", errors.New("storage disabled")
}
func (brokenChannel) Delete(context.Context, string) error { return errors.New("storage disabled") }

func newCookieChannel(t *testing.T) *CookieChannel {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	cc, err := NewCookieChannel(jar, "http://shop.test")
	require.NoError(t, err)
	return cc
}

func newStore(t *testing.T) (*TokenStore, *FileChannel, *CookieChannel, *MemoryChannel) {
	t.Helper()
	fc := NewFileChannel(filepath.Join(t.TempDir(), "credentials.json"))
	cc := newCookieChannel(t)
	mc := NewMemoryChannel()
	return NewTokenStore(fc, cc, mc, nil), fc, cc, mc
}

func TestCookieChannel(t *testing.T) {
	cc := newCookieChannel(t)
	ctx := context.Background()

	require.NoError(t, cc.Set(ctx, CustomerCookie, "tok", time.Now().Add(time.Hour)))
	got, err := cc.Get(ctx, CustomerCookie)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	require.NoError(t, cc.Delete(ctx, CustomerCookie))
	_, err = cc.Get(ctx, CustomerCookie)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewCookieChannel_BadOrigin(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	_, err = NewCookieChannel(jar, "not-a-url")
	assert.Error(t, err)
}

func TestTokenStore_WritesAllChannels(t *testing.T) {
	ts, fc, cc, mc := newStore(t)
	ctx := context.Background()

	ts.Set(ctx, models.StoredCredential{Role: models.RoleCustomer, Token: "c-tok"})

	v, err := fc.Get(ctx, "token:customer")
	require.NoError(t, err)
	assert.Equal(t, "c-tok", v)
	v, err = cc.Get(ctx, CustomerCookie)
	require.NoError(t, err)
	assert.Equal(t, "c-tok", v)

	// customer credentials never reach the volatile admin store
	_, err = mc.Get(ctx, AdminCookie)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ts.AdminMarker(ctx))

	ts.Set(ctx, models.StoredCredential{Role: models.RoleAdmin, Token: "a-tok"})
	v, err = mc.Get(ctx, AdminCookie)
	require.NoError(t, err)
	assert.Equal(t, "a-tok", v)
	assert.True(t, ts.AdminMarker(ctx))
}

func TestTokenStore_RolesIndependent(t *testing.T) {
	ts, _, _, _ := newStore(t)
	ctx := context.Background()

	ts.Set(ctx, models.StoredCredential{Role: models.RoleCustomer, Token: "c-tok"})
	ts.Set(ctx, models.StoredCredential{Role: models.RoleAdmin, Token: "a-tok"})

	c, ok := ts.Get(ctx, models.RoleCustomer)
	require.True(t, ok)
	assert.Equal(t, "c-tok", c)
	a, ok := ts.Get(ctx, models.RoleAdmin)
	require.True(t, ok)
	assert.Equal(t, "a-tok", a)

	ts.Clear(ctx, models.RoleCustomer)
	_, ok = ts.Get(ctx, models.RoleCustomer)
	assert.False(t, ok)
	a, ok = ts.Get(ctx, models.RoleAdmin)
	require.True(t, ok)
	assert.Equal(t, "a-tok", a)

	ts.Clear(ctx, models.RoleAdmin)
	_, ok = ts.Get(ctx, models.RoleAdmin)
	assert.False(t, ok)
	assert.False(t, ts.AdminMarker(ctx))
}

func TestTokenStore_ReadPriority(t *testing.T) {
	ts, fc, cc, _ := newStore(t)
	ctx := context.Background()

	// divergent channels: durable store wins
	require.NoError(t, fc.Set(ctx, "token:customer", "durable", time.Time{}))
	require.NoError(t, cc.Set(ctx, CustomerCookie, "cookie", time.Time{}))
	got, ok := ts.Get(ctx, models.RoleCustomer)
	require.True(t, ok)
	assert.Equal(t, "durable", got)

	// durable cleared externally: cookie is next
	require.NoError(t, fc.Delete(ctx, "token:customer"))
	got, ok = ts.Get(ctx, models.RoleCustomer)
	require.True(t, ok)
	assert.Equal(t, "cookie", got)
}

func TestTokenStore_SwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.WarnLevel,
	)
	cc := newCookieChannel(t)
	ts := NewTokenStore(brokenChannel{}, cc, brokenChannel{}, zap.New(core))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		ts.Set(ctx, models.StoredCredential{Role: models.RoleAdmin, Token: "a-tok"})
	})

	// the broken durable channel is skipped on read
	got, ok := ts.Get(ctx, models.RoleAdmin)
	require.True(t, ok)
	assert.Equal(t, "a-tok", got)

	ts.Clear(ctx, models.RoleAdmin)
	_, ok = ts.Get(ctx, models.RoleAdmin)
	assert.False(t, ok)

	assert.Contains(t, buf.String(), "credential write failed")
	assert.Contains(t, buf.String(), "credential clear failed")
}

func TestTokenStore_RejectsUnknownRole(t *testing.T) {
	ts, fc, _, _ := newStore(t)
	ctx := context.Background()

	ts.Set(ctx, models.StoredCredential{Role: models.RoleUnknown, Token: "x"})
	_, err := fc.Get(ctx, "token:")
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := ts.Get(ctx, models.RoleUnknown)
	assert.False(t, ok)
}

func TestTokenStore_NilChannels(t *testing.T) {
	ts := NewTokenStore(nil, nil, nil, nil)
	ctx := context.Background()

	ts.Set(ctx, models.StoredCredential{Role: models.RoleCustomer, Token: "x"})
	_, ok := ts.Get(ctx, models.RoleCustomer)
	assert.False(t, ok)
	ts.Clear(ctx, models.RoleCustomer)
}

func TestCookieName(t *testing.T) {
	assert.Equal(t, CustomerCookie, CookieName(models.RoleCustomer))
	assert.Equal(t, AdminCookie, CookieName(models.RoleAdmin))
	assert.Empty(t, CookieName(models.RoleUnknown))
}
