// Package middleware provides the storefront route guard and request logging.
package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/storage"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/routes"
)

type ctxKey string

const presenceKey ctxKey = "presence"

// RouteClasses holds one role's guarded paths. Protected entries match the
// path and everything below it; AuthEntry entries match exactly.
type RouteClasses struct {
	Protected []string
	AuthEntry []string
}

// RouteTable is the guard configuration for both roles.
type RouteTable struct {
	Customer RouteClasses
	Admin    RouteClasses
}

// DefaultRoutes returns the storefront's guarded paths.
func DefaultRoutes() RouteTable {
	return RouteTable{
		Customer: RouteClasses{
			Protected: []string{"/cart", "/wishlist", "/checkout", "/account", "/orders"},
			AuthEntry: []string{routes.Login, routes.Register},
		},
		Admin: RouteClasses{
			Protected: []string{routes.AdminHome},
			AuthEntry: []string{routes.AdminLogin, routes.AdminRegister},
		},
	}
}

// Decision is the outcome of evaluating one request path.
type Decision struct {
	// Redirect is empty when the request may proceed.
	Redirect string
	// Role is the role whose rule matched.
	Role models.Role
}

// Allowed reports whether the request proceeds unmodified.
func (d Decision) Allowed() bool { return d.Redirect == "" }

// Evaluate decides a request from token presence alone. Rules are checked in
// the order customer protected, customer auth-entry, admin protected, admin
// auth-entry; the first that fires wins.
func (t RouteTable) Evaluate(path string, hasCustomer, hasAdmin bool) Decision {
	if path == "" {
		path = "/"
	}
	checks := []struct {
		role    models.Role
		classes RouteClasses
		present bool
	}{
		{models.RoleCustomer, t.Customer, hasCustomer},
		{models.RoleAdmin, t.Admin, hasAdmin},
	}

	for _, c := range checks {
		if !c.present && c.classes.protects(path) {
			return Decision{Redirect: signInURL(c.role, path), Role: c.role}
		}
		if c.present && c.classes.isAuthEntry(path) {
			return Decision{Redirect: routes.Landing(c.role), Role: c.role}
		}
	}
	return Decision{}
}

func (c RouteClasses) protects(path string) bool {
	if c.isAuthEntry(path) {
		return false
	}
	for _, p := range c.Protected {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func (c RouteClasses) isAuthEntry(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range c.AuthEntry {
		if path == strings.TrimSuffix(p, "/") {
			return true
		}
	}
	return false
}

func signInURL(role models.Role, next string) string {
	return routes.SignIn(role) + "?" + url.Values{"next": {next}}.Encode()
}

// Presence records which role cookies a request carried.
type Presence struct {
	Customer bool
	Admin    bool
}

// Guard redirects requests that the route table rejects and passes the rest
// on with their cookie presence in the context. Token contents are never read.
func Guard(table RouteTable, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := Presence{
				Customer: hasCookie(r, storage.CustomerCookie),
				Admin:    hasCookie(r, storage.AdminCookie),
			}

			d := table.Evaluate(r.URL.Path, p.Customer, p.Admin)
			if !d.Allowed() {
				logger.Debug("route guard redirect",
					zap.String("path", r.URL.Path),
					zap.String("role", d.Role.String()),
					zap.String("location", d.Redirect),
				)
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), presenceKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PresenceFromContext returns the cookie presence recorded by Guard.
func PresenceFromContext(ctx context.Context) Presence {
	p, _ := ctx.Value(presenceKey).(Presence)
	return p
}

func hasCookie(r *http.Request, name string) bool {
	c, err := r.Cookie(name)
	return err == nil && c.Value != ""
}
