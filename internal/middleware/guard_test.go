package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/GophShop/internal/client/storage"
	"github.com/atinyakov/GophShop/internal/models"
)

// dummyHandler records whether it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestEvaluate(t *testing.T) {
	table := DefaultRoutes()

	tests := []struct {
		name     string
		path     string
		customer bool
		admin    bool
		want     string
		role     models.Role
	}{
		{name: "public page anonymous", path: "/", want: ""},
		{name: "public product page", path: "/products/42", customer: true, want: ""},
		{name: "cart without token", path: "/cart", want: "/login?next=%2Fcart", role: models.RoleCustomer},
		{name: "nested protected path", path: "/account/orders/7", want: "/login?next=%2Faccount%2Forders%2F7", role: models.RoleCustomer},
		{name: "prefix is not a segment", path: "/cartography", want: ""},
		{name: "cart with token", path: "/cart", customer: true, want: ""},
		{name: "cart with admin token only", path: "/cart", admin: true, want: "/login?next=%2Fcart", role: models.RoleCustomer},
		{name: "login while signed in", path: "/login", customer: true, want: "/", role: models.RoleCustomer},
		{name: "register while signed in", path: "/register/", customer: true, want: "/", role: models.RoleCustomer},
		{name: "login anonymous", path: "/login", want: ""},
		{name: "admin console without token", path: "/admin", want: "/admin/login?next=%2Fadmin", role: models.RoleAdmin},
		{name: "admin subpage without token", path: "/admin/products", customer: true, want: "/admin/login?next=%2Fadmin%2Fproducts", role: models.RoleAdmin},
		{name: "admin console with token", path: "/admin/products", admin: true, want: ""},
		{name: "admin login anonymous", path: "/admin/login", want: ""},
		{name: "admin login while signed in", path: "/admin/login", admin: true, want: "/admin", role: models.RoleAdmin},
		{name: "admin register while signed in", path: "/admin/register", admin: true, want: "/admin", role: models.RoleAdmin},
		{name: "customer rules first", path: "/login", customer: true, admin: true, want: "/", role: models.RoleCustomer},
		{name: "empty path", path: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := table.Evaluate(tt.path, tt.customer, tt.admin)
			assert.Equal(t, tt.want, d.Redirect)
			assert.Equal(t, tt.want == "", d.Allowed())
			assert.Equal(t, tt.role, d.Role)
		})
	}
}

func TestGuard_RedirectsWithoutCookie(t *testing.T) {
	dummy := &dummyHandler{}
	h := Guard(DefaultRoutes(), nil)(dummy)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
	h.ServeHTTP(rec, req)

	assert.False(t, dummy.called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fwishlist", rec.Header().Get("Location"))
}

func TestGuard_PassesAfterLogin(t *testing.T) {
	dummy := &dummyHandler{}
	h := Guard(DefaultRoutes(), nil)(dummy)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
	req.AddCookie(&http.Cookie{Name: storage.CustomerCookie, Value: "tok"})
	h.ServeHTTP(rec, req)

	require.True(t, dummy.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Presence{Customer: true}, PresenceFromContext(dummy.ctx))
}

func TestGuard_EmptyCookieIsAbsent(t *testing.T) {
	dummy := &dummyHandler{}
	h := Guard(DefaultRoutes(), nil)(dummy)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: storage.AdminCookie, Value: ""})
	h.ServeHTTP(rec, req)

	assert.False(t, dummy.called)
	assert.Equal(t, "/admin/login?next=%2Fadmin", rec.Header().Get("Location"))
}

func TestPresenceFromContext_Missing(t *testing.T) {
	assert.Equal(t, Presence{}, PresenceFromContext(context.Background()))
}

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := WithRequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/logout", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["bytes"])
}
