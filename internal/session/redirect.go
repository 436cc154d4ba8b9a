package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/atinyakov/GophShop/internal/models"
)

// Redirect is an accepted inbound identity redirect.
type Redirect struct {
	Token  string
	Claims *Claims
}

// ResolveRedirect validates the query of an identity-provider callback. An
// error parameter, a token that does not decode, or a token without a usable
// role all yield ErrRedirectRejected.
func ResolveRedirect(query url.Values) (*Redirect, error) {
	if e := query.Get("error"); e != "" {
		return nil, fmt.Errorf("%w: %s", ErrRedirectRejected, e)
	}

	token := strings.TrimSpace(query.Get("token"))
	claims := Decode(token)
	if claims == nil {
		return nil, fmt.Errorf("%w: %w", ErrRedirectRejected, ErrDecode)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrRedirectRejected, claims.RawRole)
	}
	return &Redirect{Token: token, Claims: claims}, nil
}

// Session builds the session the redirect seats.
func (r *Redirect) Session() models.Session {
	return models.Session{
		UserID:      r.Claims.UserID,
		DisplayName: r.Claims.Name,
		Email:       r.Claims.Email,
		Role:        r.Claims.Role,
	}
}
