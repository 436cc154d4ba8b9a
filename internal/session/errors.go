package session

import (
	"errors"
	"fmt"

	"github.com/atinyakov/GophShop/internal/models"
)

var (
	// ErrRoleRequired is returned when a login names no expected role.
	ErrRoleRequired = errors.New("expected role is required")
	// ErrIncompleteLogin is returned when the backend answers a login without
	// a user object or without a token.
	ErrIncompleteLogin = errors.New("login response is missing user or token")
	// ErrDecode marks a token whose claims could not be read.
	ErrDecode = errors.New("malformed token")
	// ErrNoSession is returned by operations that need a seated session.
	ErrNoSession = errors.New("no active session")
	// ErrRedirectRejected is returned when an inbound redirect carries an
	// error indicator or an unusable token.
	ErrRedirectRejected = errors.New("identity redirect rejected")
)

// RoleMismatchError is returned when valid credentials resolve to a role
// other than the one the login form expects.
type RoleMismatchError struct {
	Expected models.Role
	Actual   models.Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("role mismatch: expected %s, got %s", e.Expected, e.Actual)
}
