package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/catalog"
	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/storage"
	"github.com/atinyakov/GophShop/internal/commerce"
	"github.com/atinyakov/GophShop/internal/config"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/session"
)

const requestTimeout = 30 * time.Second

// app is one storefront client instance, the equivalent of a browser tab.
type app struct {
	opts *config.Options
	log  *zap.Logger

	outMu sync.Mutex
	out   io.Writer

	api        *api.Client
	storefront *http.Client
	cookies    *storage.CookieChannel
	tokens     *storage.TokenStore
	sessions   *session.Manager
	commerce   *commerce.Store
	catalog    *catalog.Resolver
}

// newApp wires the credential channels, backend client, session, commerce
// store and catalog resolver.
func newApp(opts *config.Options, log *zap.Logger, out io.Writer) (*app, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	cookies, err := storage.NewCookieChannel(jar, opts.StorefrontURL)
	if err != nil {
		return nil, err
	}

	var durable storage.Channel
	if opts.RedisURL != "" {
		rc, err := storage.NewRedisChannel(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		durable = rc
	} else {
		durable = storage.NewFileChannel(opts.CredentialsFile)
	}

	hc, err := api.NewHTTPClient(opts.CAFile, jar, requestTimeout)
	if err != nil {
		return nil, err
	}

	a := &app{
		opts:    opts,
		log:     log,
		out:     out,
		api:     api.New(opts.APIURL, hc, log),
		cookies: cookies,
		storefront: &http.Client{
			Transport: hc.Transport,
			Jar:       jar,
			Timeout:   requestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	a.tokens = storage.NewTokenStore(durable, cookies, storage.NewMemoryChannel(), log)
	a.sessions = session.NewManager(a.api, a.tokens, log)
	a.commerce = commerce.NewStore(a.api, a.sessions, a.notice, log)
	a.catalog = catalog.NewResolver(a.api, log)
	a.sessions.Subscribe(a.commerce.SessionChanged)
	return a, nil
}

// bootstrap restores the stored session. The cookie jar lives in memory, so
// a restored token is put back into it for the storefront server to see.
func (a *app) bootstrap(ctx context.Context) *models.Session {
	sess := a.sessions.Bootstrap(ctx)
	if sess == nil {
		return nil
	}
	expires := time.Now().Add(24 * time.Hour)
	if c := session.Decode(a.sessions.Token()); c != nil && !c.ExpiresAt.IsZero() {
		expires = c.ExpiresAt
	}
	if err := a.cookies.Set(ctx, storage.CookieName(sess.Role), a.sessions.Token(), expires); err != nil {
		a.log.Warn("reseed credential cookie", zap.Error(err))
	}
	return sess
}

func (a *app) close() {
	a.commerce.Close()
}

func (a *app) notice(n commerce.Notice) {
	a.printf("[%s] %s\n", n.Level, n.Message)
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
