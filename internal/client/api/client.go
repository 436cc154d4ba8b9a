// Package api is the HTTP boundary between the storefront client and the
// commerce backend. Every failure leaving this package is a *FetchError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/models"
)

const (
	apiLogin    = "/auth/login"
	apiRegister = "/auth/register"
	apiMe       = "/me"
	apiCart     = "/cart"
	apiWishlist = "/wishlist"
	apiAccount  = "/account/wishlist"
	apiProducts = "/products"
)

// Client calls the commerce backend. The bearer token is attached to every
// request except registration.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu    sync.RWMutex
	token string
}

// New returns a Client for baseURL. A nil hc uses http.DefaultClient and a
// nil log discards output.
func New(baseURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     log,
	}
}

// SetToken replaces the bearer token. An empty token sends requests anonymously.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResponse carries the raw user object and token. Either may be missing.
type LoginResponse struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login authenticates against the backend.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, apiLogin, req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. It is always sent without a bearer token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, "register", http.MethodPost, apiRegister, req, false, nil)
}

// Me fetches the profile of the bearer token's owner as a raw object.
func (c *Client) Me(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, "profile", http.MethodGet, apiMe, nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cart fetches the cart of userID.
func (c *Client) Cart(ctx context.Context, userID string) ([]models.CartItem, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "cart", http.MethodGet, apiCart+"/"+url.PathEscape(userID), nil, true, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[models.CartItem](raw)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, Op: "cart", Err: err}
	}
	return items, nil
}

// AddToCart adds quantity units of productID to the caller's cart.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	body := map[string]any{"productId": productID, "quantity": quantity}
	return c.do(ctx, "add to cart", http.MethodPost, apiCart, body, true, nil)
}

// RemoveFromCart removes productID from userID's cart.
func (c *Client) RemoveFromCart(ctx context.Context, userID, productID string) error {
	path := apiCart + "/" + url.PathEscape(userID) + "/" + url.PathEscape(productID)
	return c.do(ctx, "remove from cart", http.MethodDelete, path, nil, true, nil)
}

// Wishlist fetches the caller's wishlist.
func (c *Client) Wishlist(ctx context.Context) ([]models.WishlistItem, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "wishlist", http.MethodGet, apiAccount, nil, true, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[models.WishlistItem](raw)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, Op: "wishlist", Err: err}
	}
	return items, nil
}

// AddToWishlist adds productID to the caller's wishlist.
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	body := map[string]any{"productId": productID}
	return c.do(ctx, "add to wishlist", http.MethodPost, apiWishlist, body, true, nil)
}

// RemoveFromWishlist deletes a wishlist entry by its item id.
func (c *Client) RemoveFromWishlist(ctx context.Context, itemID string) error {
	return c.do(ctx, "remove from wishlist", http.MethodDelete, apiAccount+"/"+url.PathEscape(itemID), nil, true, nil)
}

// Products queries the catalog. Empty filter fields are omitted.
func (c *Client) Products(ctx context.Context, f models.ProductFilter) (*models.ProductPage, error) {
	q := url.Values{}
	if f.MainCategory != "" {
		q.Set("mainCategory", f.MainCategory)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Subcategory != "" {
		q.Set("subcategory", f.Subcategory)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	path := apiProducts
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out models.ProductPage
	if err := c.do(ctx, "products", http.MethodGet, path, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and decodes a JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &FetchError{Kind: KindNetwork, Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("backend request failed", zap.String("op", op), zap.Error(err))
		return &FetchError{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("backend rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return &FetchError{
			Kind:    KindHTTP,
			Status:  resp.StatusCode,
			Message: errorMessage(data),
			Op:      op,
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return &FetchError{Kind: KindDecode, Op: op, Err: errors.New("empty body")}
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &FetchError{Kind: KindDecode, Op: op, Err: err}
	}
	return nil
}

// errorMessage extracts a message from a JSON error body ({"message"} or
// {"error"}), falling back to the trimmed plain text.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// decodeList accepts either a bare JSON array or an object wrapping the array
// under "items", "data" or "wishlist".
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"items", "data", "wishlist", "cart"} {
		if inner, ok := envelope[key]; ok {
			return decodeList[T](inner)
		}
	}
	return nil, errors.New("no item list in response")
}
