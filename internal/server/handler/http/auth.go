// Package http provides the storefront page server handlers: the inbound
// identity callback, logout and placeholder pages behind the route guard.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/storage"
	"github.com/atinyakov/GophShop/internal/middleware"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/routes"
	"github.com/atinyakov/GophShop/internal/session"
)

// defaultCookieTTL applies when a callback token carries no expiry.
const defaultCookieTTL = 7 * 24 * time.Hour

// AuthHandler serves the identity-provider callback and logout.
type AuthHandler struct {
	// Secure marks issued cookies Secure; set it when serving over HTTPS.
	Secure bool
	Logger *zap.Logger
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Callback handles GET /auth/callback?token=... or ?error=....
//
// An accepted token is set as the cookie of its role and the browser is sent
// to the role's landing page. A rejected redirect goes to the sign-in page and
// sets nothing. The token's signature is not checked here; the backend does
// that when the page later fetches the profile.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	red, err := session.ResolveRedirect(r.URL.Query())
	if err != nil {
		h.logger().Info("identity callback rejected", zap.Error(err))
		http.Redirect(w, r, routes.Login, http.StatusFound)
		return
	}

	role := red.Claims.Role
	expires := red.Claims.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(defaultCookieTTL)
	}
	http.SetCookie(w, storage.NewCookie(storage.CookieName(role), red.Token, expires, h.Secure))

	h.logger().Info("identity callback accepted",
		zap.String("role", role.String()),
		zap.String("user_id", red.Claims.UserID),
	)
	http.Redirect(w, r, routes.Landing(role), http.StatusFound)
}

// Logout expires the role cookies and sends the browser home. The optional
// role query parameter limits it to one role.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	roles := models.Roles
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := session.NormalizeRole(raw)
		if !role.Valid() {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		roles = []models.Role{role}
	}

	for _, role := range roles {
		http.SetCookie(w, storage.ExpiredCookie(storage.CookieName(role), h.Secure))
	}
	http.Redirect(w, r, routes.Home, http.StatusFound)
}

// PageHandler stands in for page rendering. It reports which page was
// reached and which role cookies the route guard saw.
type PageHandler struct{}

// ServeHTTP implements http.Handler.
func (PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := middleware.PresenceFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"page":     r.URL.Path,
		"customer": p.Customer,
		"admin":    p.Admin,
	})
}
