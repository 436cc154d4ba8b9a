package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a FetchError.
type Kind int

const (
	// KindNetwork is a transport failure: no response was received.
	KindNetwork Kind = iota
	// KindHTTP is a non-2xx response.
	KindHTTP
	// KindDecode is a 2xx response whose body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is the only error shape produced at the network boundary.
type FetchError struct {
	Kind Kind
	// Status is the HTTP status for KindHTTP, zero otherwise.
	Status int
	// Message is the server-provided message when one was readable.
	Message string
	Op      string
	Err     error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTP:
		if e.Message != "" {
			return fmt.Sprintf("%s: server error %d: %s", e.Op, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: server error %d", e.Op, e.Status)
	case KindDecode:
		return fmt.Sprintf("%s: invalid response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Unauthorized reports whether the backend rejected the bearer token.
func (e *FetchError) Unauthorized() bool {
	return e.Kind == KindHTTP && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// IsUnauthorized reports whether err is a FetchError carrying 401 or 403.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Unauthorized()
}
