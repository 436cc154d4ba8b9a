package session

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/models"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return token
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Role
	}{
		{"admin", models.RoleAdmin},
		{"ADMIN", models.RoleAdmin},
		{"Administrator", models.RoleAdmin},
		{"ROLE_ADMIN", models.RoleAdmin},
		{"role:admin", models.RoleAdmin},
		{"roles/administrator", models.RoleAdmin},
		{"customer", models.RoleCustomer},
		{" User ", models.RoleCustomer},
		{"ROLE_USER", models.RoleCustomer},
		{"client", models.RoleCustomer},
		{"", models.RoleUnknown},
		{"superuser", models.RoleUnknown},
		{"role_", models.RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRole(tt.raw))
		})
	}
}

func TestBackendRole(t *testing.T) {
	assert.Equal(t, "user", BackendRole(models.RoleCustomer))
	assert.Equal(t, "admin", BackendRole(models.RoleAdmin))
	assert.Empty(t, BackendRole(models.RoleUnknown))
}

func TestDecode_Malformed(t *testing.T) {
	garbage := base64.RawURLEncoding.EncodeToString([]byte("{not json"))

	for name, token := range map[string]string{
		"empty":           "",
		"spaces":          "   ",
		"one segment":     "abc",
		"two segments":    "abc.def",
		"bad base64":      "a.%%%.c",
		"payload garbage": "eyJhbGciOiJIUzI1NiJ9." + garbage + ".sig",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, Decode(token))
		})
	}
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signed(t, jwt.MapClaims{
		"userId": "u-1",
		"role":   "ROLE_ADMIN",
		"email":  "ann@example.com",
		"exp":    exp.Unix(),
	})

	c := Decode(token)
	require.NotNil(t, c)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, models.RoleAdmin, c.Role)
	assert.Equal(t, "ROLE_ADMIN", c.RawRole)
	assert.Equal(t, "ann@example.com", c.Email)
	assert.True(t, exp.Equal(c.ExpiresAt))
}

func TestDecode_IgnoresSignature(t *testing.T) {
	token := signed(t, jwt.MapClaims{"sub": "u-9", "role": "user"})

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString([]byte("forged"))

	c := Decode(forged)
	require.NotNil(t, c)
	assert.Equal(t, "u-9", c.UserID)
	assert.Equal(t, models.RoleCustomer, c.Role)
}

func TestResolveFromProfile(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want models.Session
	}{
		{
			name: "mongo style",
			raw:  map[string]any{"_id": "1", "name": "Ann", "email": "a@x", "role": "user"},
			want: models.Session{UserID: "1", DisplayName: "Ann", Email: "a@x", Role: models.RoleCustomer},
		},
		{
			name: "camel case in envelope",
			raw:  map[string]any{"user": map[string]any{"userId": "2", "displayName": "Bob", "Email": "b@x", "userRole": "Admin"}},
			want: models.Session{UserID: "2", DisplayName: "Bob", Email: "b@x", Role: models.RoleAdmin},
		},
		{
			name: "snake case in data envelope",
			raw:  map[string]any{"data": map[string]any{"user_id": float64(3), "first_name": "Cy", "last_name": "Doe", "role": "client"}},
			want: models.Session{UserID: "3", DisplayName: "Cy Doe", Role: models.RoleCustomer},
		},
		{
			name: "unknown role",
			raw:  map[string]any{"id": "4", "role": "guest"},
			want: models.Session{UserID: "4", Role: models.RoleUnknown},
		},
		{
			name: "canonical key wins",
			raw:  map[string]any{"id": "5", "_id": "other", "role": "user"},
			want: models.Session{UserID: "5", Role: models.RoleCustomer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFromProfile(tt.raw))
		})
	}
}
