package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/routes"
)

// AuthAPI is the part of the backend the session talks to.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	Me(ctx context.Context) (map[string]any, error)
	SetToken(token string)
}

// CredentialStore persists tokens per role. Implementations swallow their own
// failures; *storage.TokenStore is the production one.
type CredentialStore interface {
	Set(ctx context.Context, cred models.StoredCredential)
	Get(ctx context.Context, role models.Role) (string, bool)
	Clear(ctx context.Context, role models.Role)
}

// Listener is called after the seated session changes. A nil session means
// signed out.
type Listener func(*models.Session)

// Manager holds the session of one client instance and exposes the login,
// logout, bootstrap and redirect protocols. It is safe for concurrent use.
type Manager struct {
	api   AuthAPI
	store CredentialStore
	log   *zap.Logger

	mu        sync.Mutex
	session   *models.Session
	token     string
	gen       uint64
	listeners []Listener
}

// NewManager returns a Manager with no seated session.
func NewManager(client AuthAPI, store CredentialStore, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: client, store: store, log: log}
}

// Subscribe registers fn for session changes.
func (m *Manager) Subscribe(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Current returns a copy of the seated session, or nil.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Token returns the bearer token of the seated session.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Login signs in with the form of the expected role and returns the landing
// path. Credentials resolving to another role are rejected and nothing is
// persisted.
func (m *Manager) Login(ctx context.Context, email, password string, expected models.Role) (string, error) {
	if !expected.Valid() {
		return "", ErrRoleRequired
	}

	resp, err := m.api.Login(ctx, api.LoginRequest{
		Email:    email,
		Password: password,
		Role:     BackendRole(expected),
	})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp == nil || len(resp.User) == 0 || strings.TrimSpace(resp.Token) == "" {
		return "", ErrIncompleteLogin
	}

	sess := ResolveFromProfile(resp.User)
	if sess.Role != expected {
		m.log.Info("login rejected: role mismatch",
			zap.String("expected", expected.String()),
			zap.String("actual", sess.Role.String()),
		)
		return "", &RoleMismatchError{Expected: expected, Actual: sess.Role}
	}

	claims := Decode(resp.Token)
	if sess.UserID == "" && claims != nil {
		sess.UserID = claims.UserID
	}

	m.persist(ctx, sess.Role, resp.Token, claims)
	m.seat(&sess, resp.Token)
	m.log.Info("signed in", zap.String("role", sess.Role.String()), zap.String("user_id", sess.UserID))
	return routes.Landing(sess.Role), nil
}

// Register creates an account for role. It does not sign in.
func (m *Manager) Register(ctx context.Context, name, email, password string, role models.Role) error {
	if !role.Valid() {
		return ErrRoleRequired
	}
	err := m.api.Register(ctx, api.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     BackendRole(role),
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Logout clears the seated role's credential from every channel and drops the
// in-memory session. With nothing seated it clears every stored role.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	var role models.Role
	if m.session != nil {
		role = m.session.Role
	}
	listeners := m.resetLocked()
	m.mu.Unlock()

	m.api.SetToken("")
	if role.Valid() {
		m.store.Clear(ctx, role)
	} else {
		for _, r := range models.Roles {
			if _, ok := m.store.Get(ctx, r); ok {
				m.store.Clear(ctx, r)
			}
		}
	}

	m.log.Info("signed out", zap.String("role", role.String()))
	notify(listeners, nil)
}

// Bootstrap restores a session from the first stored credential, customer
// before admin. A failed profile fetch leaves the client anonymous but keeps
// the stored credential until an explicit Logout. Failures are not returned.
func (m *Manager) Bootstrap(ctx context.Context) *models.Session {
	for _, role := range models.Roles {
		token, ok := m.store.Get(ctx, role)
		if !ok || token == "" {
			continue
		}
		return m.restore(ctx, role, token)
	}
	return nil
}

func (m *Manager) restore(ctx context.Context, role models.Role, token string) *models.Session {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	m.api.SetToken(token)
	raw, err := m.api.Me(ctx)
	if err == nil {
		var sess models.Session
		if sess, err = m.profileSession(raw, token, role); err == nil {
			if !m.seatIf(gen, &sess, token) {
				return m.Current()
			}
			m.log.Debug("session restored", zap.String("role", role.String()))
			return &sess
		}
	}

	m.log.Debug("session bootstrap failed", zap.String("role", role.String()), zap.Error(err))
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return m.Current()
	}
	listeners := m.resetLocked()
	m.mu.Unlock()
	m.api.SetToken("")
	notify(listeners, nil)
	return nil
}

// RefreshProfile re-reads the profile of the seated session. An unauthorized
// answer or a changed role signs the client out in memory only.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	gen, token, role := m.gen, m.token, m.session.Role
	m.mu.Unlock()

	raw, err := m.api.Me(ctx)
	if err == nil {
		var sess models.Session
		if sess, err = m.profileSession(raw, token, role); err == nil {
			m.seatIf(gen, &sess, token)
			return nil
		}
	} else if !api.IsUnauthorized(err) {
		return fmt.Errorf("refresh profile: %w", err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return fmt.Errorf("refresh profile: %w", err)
	}
	listeners := m.resetLocked()
	m.mu.Unlock()
	m.api.SetToken("")
	notify(listeners, nil)
	return fmt.Errorf("refresh profile: %w", err)
}

// HandleRedirect consumes an identity-provider callback query and returns
// where to go next: the role's landing path, or the sign-in page when the
// redirect is rejected.
func (m *Manager) HandleRedirect(ctx context.Context, query url.Values) string {
	r, err := ResolveRedirect(query)
	if err != nil {
		m.log.Info("identity redirect rejected", zap.Error(err))
		return routes.Login
	}

	sess := r.Session()
	m.persist(ctx, sess.Role, r.Token, r.Claims)
	m.seat(&sess, r.Token)
	return routes.Landing(sess.Role)
}

// profileSession resolves a /me answer. The role falls back to the token's
// claim and must equal the role the token was stored under.
func (m *Manager) profileSession(raw map[string]any, token string, role models.Role) (models.Session, error) {
	sess := ResolveFromProfile(raw)
	claims := Decode(token)
	if !sess.Role.Valid() && claims != nil {
		sess.Role = claims.Role
	}
	if sess.UserID == "" && claims != nil {
		sess.UserID = claims.UserID
	}
	if sess.Role != role {
		return models.Session{}, &RoleMismatchError{Expected: role, Actual: sess.Role}
	}
	return sess, nil
}

func (m *Manager) persist(ctx context.Context, role models.Role, token string, claims *Claims) {
	cred := models.StoredCredential{Role: role, Token: token}
	if claims != nil {
		cred.ExpiryHint = claims.ExpiresAt
	}
	if cred.ExpiryHint.IsZero() {
		cred.ExpiryHint = time.Now().Add(defaultCredentialTTL)
	}
	m.store.Set(ctx, cred)
}

const defaultCredentialTTL = 7 * 24 * time.Hour

func (m *Manager) seat(sess *models.Session, token string) {
	m.mu.Lock()
	listeners := m.seatLocked(sess, token)
	m.mu.Unlock()
	m.api.SetToken(token)
	notify(listeners, sess)
}

// seatIf seats sess unless the session changed since gen was read. A profile
// refresh of the same user updates the fields without notifying listeners.
func (m *Manager) seatIf(gen uint64, sess *models.Session, token string) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	if m.session != nil && m.session.UserID == sess.UserID && m.token == token {
		s := *sess
		m.session = &s
		m.mu.Unlock()
		return true
	}
	listeners := m.seatLocked(sess, token)
	m.mu.Unlock()
	m.api.SetToken(token)
	notify(listeners, sess)
	return true
}

func (m *Manager) seatLocked(sess *models.Session, token string) []Listener {
	s := *sess
	m.session = &s
	m.token = token
	m.gen++
	return append([]Listener(nil), m.listeners...)
}

func (m *Manager) resetLocked() []Listener {
	m.session = nil
	m.token = ""
	m.gen++
	return append([]Listener(nil), m.listeners...)
}

func notify(listeners []Listener, sess *models.Session) {
	for _, fn := range listeners {
		if sess == nil {
			fn(nil)
			continue
		}
		s := *sess
		fn(&s)
	}
}
