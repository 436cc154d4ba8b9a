// Package apitest provides an in-memory commerce backend speaking the same
// HTTP contract as the real one, for use in tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atinyakov/GophShop/internal/models"
)

// User is an account known to the fake backend.
type User struct {
	ID       string
	Name     string
	Email    string
	Password string
	// Role is the backend role string, e.g. "user" or "admin".
	Role string
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	secret []byte

	mu          sync.Mutex
	users       map[string]User // by email
	products    []models.Product
	carts       map[string][]models.CartItem
	wishlists   map[string][]models.WishlistItem
	hits        map[string]int
	total       int
	failures    map[string]int
	loginMutate func(map[string]any)
	lastAuth    map[string]string
}

// NewServer starts a fake backend closed automatically at test cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{
		secret:    []byte("apitest-secret"),
		users:     make(map[string]User),
		carts:     make(map[string][]models.CartItem),
		wishlists: make(map[string][]models.WishlistItem),
		hits:      make(map[string]int),
		failures:  make(map[string]int),
		lastAuth:  make(map[string]string),
	}

	r := chi.NewRouter()
	r.Post("/auth/login", s.route("POST /auth/login", s.login))
	r.Post("/auth/register", s.route("POST /auth/register", s.register))
	r.Get("/me", s.route("GET /me", s.authed(s.me)))
	r.Get("/cart/{userID}", s.route("GET /cart", s.authed(s.getCart)))
	r.Post("/cart", s.route("POST /cart", s.authed(s.addCart)))
	r.Delete("/cart/{userID}/{productID}", s.route("DELETE /cart", s.authed(s.removeCart)))
	r.Get("/account/wishlist", s.route("GET /wishlist", s.authed(s.getWishlist)))
	r.Post("/wishlist", s.route("POST /wishlist", s.authed(s.addWishlist)))
	r.Delete("/account/wishlist/{itemID}", s.route("DELETE /wishlist", s.authed(s.removeWishlist)))
	r.Get("/products", s.route("GET /products", s.listProducts))

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Email)] = u
}

// AddProducts appends catalog entries.
func (s *Server) AddProducts(p ...models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, p...)
}

// Fail makes every request to route ("METHOD /path") answer status until
// Fail is called again with status 0.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// MutateLogin installs a hook that may rewrite the login response body.
func (s *Server) MutateLogin(fn func(body map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginMutate = fn
}

// Hits returns the number of requests seen for route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// Requests returns the number of requests seen on all routes.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Authorization returns the Authorization header of the last request to route.
func (s *Server) Authorization(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth[route]
}

// CartOf returns a copy of the server-side cart of userID.
func (s *Server) CartOf(userID string) []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartItem(nil), s.carts[userID]...)
}

// IssueToken signs a token the fake backend accepts.
func (s *Server) IssueToken(userID, role string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"userId": userID,
		"role":   role,
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token
}

func (s *Server) route(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[name]++
		s.total++
		s.lastAuth[name] = r.Header.Get("Authorization")
		status := s.failures[name]
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "injected failure"})
			return
		}
		next(w, r)
	}
}

type ctxUser struct {
	id   string
	role string
}

func (s *Server) authed(next func(http.ResponseWriter, *http.Request, ctxUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.secret, nil })
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		id, _ := claims["userId"].(string)
		role, _ := claims["role"].(string)
		next(w, r, ctxUser{id: id, role: role})
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Email)]
	mutate := s.loginMutate
	s.mu.Unlock()

	if !ok || u.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	body := map[string]any{
		"user":  userJSON(u),
		"token": s.IssueToken(u.ID, u.Role, time.Hour),
	}
	if mutate != nil {
		mutate(body)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "registration must be anonymous"})
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[strings.ToLower(req.Email)]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "user already exists"})
		return
	}
	u := User{ID: uuid.NewString(), Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}
	s.users[strings.ToLower(u.Email)] = u
	writeJSON(w, http.StatusCreated, map[string]any{"user": userJSON(u)})
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request, cu ctxUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == cu.id {
			writeJSON(w, http.StatusOK, map[string]any{"user": userJSON(u)})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "user not found"})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request, cu ctxUser) {
	if chi.URLParam(r, "userID") != cu.id {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return
	}
	s.mu.Lock()
	items := append([]models.CartItem{}, s.carts[cu.id]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) addCart(w http.ResponseWriter, r *http.Request, cu ctxUser) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" || req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.productLocked(req.ProductID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "product not found"})
		return
	}
	cart := s.carts[cu.id]
	for i := range cart {
		if cart[i].ProductID == req.ProductID {
			cart[i].Quantity += req.Quantity
			writeJSON(w, http.StatusOK, cart[i])
			return
		}
	}
	item := models.CartItem{ID: uuid.NewString(), ProductID: req.ProductID, Quantity: req.Quantity, Product: product}
	s.carts[cu.id] = append(cart, item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) removeCart(w http.ResponseWriter, r *http.Request, cu ctxUser) {
	if chi.URLParam(r, "userID") != cu.id {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return
	}
	productID := chi.URLParam(r, "productID")

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[cu.id]
	for i := range cart {
		if cart[i].ProductID == productID {
			s.carts[cu.id] = append(cart[:i:i], cart[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not in cart"})
}

func (s *Server) getWishlist(w http.ResponseWriter, _ *http.Request, cu ctxUser) {
	s.mu.Lock()
	items := append([]models.WishlistItem{}, s.wishlists[cu.id]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) addWishlist(w http.ResponseWriter, r *http.Request, cu ctxUser) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.productLocked(req.ProductID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "product not found"})
		return
	}
	for _, it := range s.wishlists[cu.id] {
		if it.ProductID == req.ProductID {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "already in wishlist"})
			return
		}
	}
	item := models.WishlistItem{ID: uuid.NewString(), ProductID: req.ProductID, Product: product}
	s.wishlists[cu.id] = append(s.wishlists[cu.id], item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) removeWishlist(w http.ResponseWriter, r *http.Request, cu ctxUser) {
	itemID := chi.URLParam(r, "itemID")

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.wishlists[cu.id]
	for i := range list {
		if list[i].ID == itemID {
			s.wishlists[cu.id] = append(list[:i:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not in wishlist"})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}

	s.mu.Lock()
	var matched []models.Product
	for _, p := range s.products {
		if !matches(q.Get("mainCategory"), p.MainCategory) ||
			!matches(q.Get("category"), p.Category) ||
			!matches(q.Get("subcategory"), p.Subcategory) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.Unlock()

	total := len(matched)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	writeJSON(w, http.StatusOK, models.ProductPage{
		Products:   append([]models.Product{}, matched[start:end]...),
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	})
}

func (s *Server) productLocked(id string) (models.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func matches(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

func userJSON(u User) map[string]any {
	return map[string]any{
		"_id":   u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
