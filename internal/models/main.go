// Package models defines the core data structures shared by the storefront
// client: sessions, stored credentials, commerce items and catalog queries.
package models

import "time"

// Role is the access class of a session.
type Role string

const (
	// RoleUnknown marks an absent or unparseable role. It never seats a session.
	RoleUnknown Role = ""
	// RoleAdmin is the administrative console role.
	RoleAdmin Role = "admin"
	// RoleCustomer is the shopper role.
	RoleCustomer Role = "customer"
)

// Roles lists the roles that can hold a session, in bootstrap priority order.
var Roles = []Role{RoleCustomer, RoleAdmin}

// Valid reports whether r can seat a session.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// String returns the role name, or "unknown".
func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// Session is the resolved identity of the current client instance.
type Session struct {
	// UserID is the backend identifier of the user.
	UserID string `json:"userId"`
	// DisplayName is a human readable name, possibly empty.
	DisplayName string `json:"displayName"`
	// Email is the account email, possibly empty.
	Email string `json:"email"`
	// Role is always RoleAdmin or RoleCustomer for a seated session.
	Role Role `json:"role"`
}

// StoredCredential is a token persisted for one role.
type StoredCredential struct {
	Role       Role      `json:"role"`
	Token      string    `json:"token"`
	ExpiryHint time.Time `json:"expiryHint"`
}

// Product is the snapshot of a catalog product.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	MainCategory string  `json:"mainCategory,omitempty"`
	Category     string  `json:"category,omitempty"`
	Subcategory  string  `json:"subcategory,omitempty"`
	Stock        int     `json:"stock,omitempty"`
}

// CartItem is one line of the backend-owned cart.
type CartItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// WishlistItem is one entry of the backend-owned wishlist.
type WishlistItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
}

// ProductFilter is the caller-supplied catalog filter.
type ProductFilter struct {
	MainCategory string `json:"mainCategory,omitempty"`
	Category     string `json:"category,omitempty"`
	Subcategory  string `json:"subcategory,omitempty"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
}

// ProductQueryPlan is the filter actually sent for one rung of the
// relaxation ladder.
type ProductQueryPlan struct {
	ProductFilter
	// Rung indexes the ladder: 0 is the full filter, 2 the broadest.
	Rung int `json:"rung"`
}

// ProductPage is one page of catalog results.
type ProductPage struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}
