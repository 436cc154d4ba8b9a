// Package routes names the storefront paths that session handling and route
// guarding agree on.
package routes

import "github.com/atinyakov/GophShop/internal/models"

// Storefront paths. Login and Register are the customer sign-in entry
// points, AdminLogin and AdminRegister the admin ones; Callback receives
// identity-provider redirects.
const (
	Home          = "/"
	Login         = "/login"
	Register      = "/register"
	AdminHome     = "/admin"
	AdminLogin    = "/admin/login"
	AdminRegister = "/admin/register"
	Callback      = "/auth/callback"
	Logout        = "/logout"
)

// Landing returns where role lands after signing in.
func Landing(role models.Role) string {
	if role == models.RoleAdmin {
		return AdminHome
	}
	return Home
}

// SignIn returns role's sign-in entry point. Unknown roles use the customer one.
func SignIn(role models.Role) string {
	if role == models.RoleAdmin {
		return AdminLogin
	}
	return Login
}
