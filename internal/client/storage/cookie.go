package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// NewCookie builds a credential cookie. It is used both by the client-side
// cookie channel and by the storefront server when it seats a credential.
func NewCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds a cookie that removes name.
func ExpiredCookie(name string, secure bool) *http.Cookie {
	c := NewCookie(name, "", time.Time{}, secure)
	c.MaxAge = -1
	return c
}

// CookieChannel stores credentials as cookies of the storefront origin in an
// http.CookieJar. Any request the client sends to that origin carries them,
// which is what the server-side route guard inspects.
type CookieChannel struct {
	jar    http.CookieJar
	origin *url.URL
	secure bool
}

// NewCookieChannel scopes jar to the storefront origin.
func NewCookieChannel(jar http.CookieJar, origin string) (*CookieChannel, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse storefront origin: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storefront origin %q has no host", origin)
	}
	return &CookieChannel{jar: jar, origin: u, secure: u.Scheme == "https"}, nil
}

// Name implements Channel.
func (cc *CookieChannel) Name() string { return "cookie" }

// Set implements Channel.
func (cc *CookieChannel) Set(_ context.Context, key, value string, expires time.Time) error {
	cc.jar.SetCookies(cc.origin, []*http.Cookie{NewCookie(key, value, expires, cc.secure)})
	return nil
}

// Get implements Channel.
func (cc *CookieChannel) Get(_ context.Context, key string) (string, error) {
	for _, c := range cc.jar.Cookies(cc.origin) {
		if c.Name == key && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrNotFound
}

// Delete implements Channel.
func (cc *CookieChannel) Delete(_ context.Context, key string) error {
	cc.jar.SetCookies(cc.origin, []*http.Cookie{ExpiredCookie(key, cc.secure)})
	return nil
}
