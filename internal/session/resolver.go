// Package session resolves identities from tokens and profiles and keeps the
// process-wide session state of one storefront client.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atinyakov/GophShop/internal/models"
)

var (
	rolePrefixes = []string{"role_", "role:", "roles/", "role-"}
	keyReplacer  = strings.NewReplacer("_", "", "-", "")
)

// NormalizeRole maps a raw role string to a canonical role. Matching is
// case-insensitive and ignores a leading role namespace such as "ROLE_".
func NormalizeRole(raw string) models.Role {
	r := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range rolePrefixes {
		if strings.HasPrefix(r, p) {
			r = strings.TrimPrefix(r, p)
			break
		}
	}

	switch r {
	case "admin", "administrator":
		return models.RoleAdmin
	case "customer", "user", "client":
		return models.RoleCustomer
	default:
		return models.RoleUnknown
	}
}

// BackendRole is the role name the authentication endpoint expects.
func BackendRole(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "admin"
	case models.RoleCustomer:
		return "user"
	default:
		return ""
	}
}

// Claims are the routing hints read from a token.
type Claims struct {
	UserID    string
	Role      models.Role
	RawRole   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Decode reads a token's claims without verifying its signature; verification
// is the backend's job. It returns nil for any malformed input.
func Decode(token string) *Claims {
	claims, err := decodeClaims(token)
	if err != nil {
		return nil
	}
	return claims
}

func decodeClaims(token string) (c *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%w: %v", ErrDecode, r)
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrDecode
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	fields := normalizeKeys(mc)
	c = &Claims{
		UserID:  firstString(fields, "userid", "id", "sub"),
		RawRole: firstString(fields, "role", "userrole"),
		Email:   firstString(fields, "email"),
		Name:    firstString(fields, "name", "displayname"),
	}
	c.Role = NormalizeRole(c.RawRole)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// ResolveFromProfile maps a backend user object into a Session. Field names
// are matched regardless of casing convention ("userId", "user_id", "_id",
// "UserID") and a {"user": ...} or {"data": ...} envelope is unwrapped. The
// returned role may be RoleUnknown; callers must not seat such a session.
func ResolveFromProfile(raw map[string]any) models.Session {
	fields := normalizeKeys(unwrap(raw))

	name := firstString(fields, "displayname", "name", "fullname", "username")
	if name == "" {
		name = strings.TrimSpace(firstString(fields, "firstname") + " " + firstString(fields, "lastname"))
	}

	return models.Session{
		UserID:      firstString(fields, "id", "userid"),
		DisplayName: name,
		Email:       firstString(fields, "email", "emailaddress"),
		Role:        NormalizeRole(firstString(fields, "role", "userrole")),
	}
}

func unwrap(raw map[string]any) map[string]any {
	for depth := 0; depth < 2; depth++ {
		inner, ok := envelope(raw)
		if !ok {
			break
		}
		raw = inner
	}
	return raw
}

func envelope(raw map[string]any) (map[string]any, bool) {
	for _, key := range []string{"user", "data"} {
		if inner, ok := raw[key].(map[string]any); ok {
			return inner, true
		}
	}
	return nil, false
}

// normalizeKeys lowercases keys and strips "_" and "-" so that the common
// casing conventions of one field collapse to a single key.
func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nk := strings.ToLower(keyReplacer.Replace(k))
		// an already-canonical key beats its variants
		if _, exists := out[nk]; exists && k != nk {
			continue
		}
		out[nk] = v
	}
	return out
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}
