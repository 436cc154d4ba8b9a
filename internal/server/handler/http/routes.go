package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/middleware"
	"github.com/atinyakov/GophShop/internal/routes"
)

// NewRouter constructs the storefront page server.
//
// Routes:
//
//	GET  /auth/callback → authHandler.Callback
//	GET  /logout        → authHandler.Logout
//	POST /logout        → authHandler.Logout
//	*    /*             → pages
//
// Middleware chain (applied in order):
//  1. RequestID                  tags every request
//  2. WithRequestLogging(logger)  logs incoming requests
//  3. Guard(table, logger)        redirects by role cookie presence
//
// The callback and logout routes sit outside the guard.
func NewRouter(
	authHandler *AuthHandler,
	pages http.Handler,
	table middleware.RouteTable,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get(routes.Callback, authHandler.Callback)
	r.Get(routes.Logout, authHandler.Logout)
	r.Post(routes.Logout, authHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(table, logger))
		r.Handle("/*", pages)
	})

	return r
}
