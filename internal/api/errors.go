package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies API failures.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindBadRequest Kind = "bad_request"
	KindServer     Kind = "server"
	KindTransient  Kind = "transient"
)

// Error is returned for every failed request. Message is safe to show to
// the user: it is the server's message when one was sent, otherwise
// "HTTP <status>".
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return "request failed"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests, status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return KindTransient
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}

// KindOf reports the Kind of an *Error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// StatusOf returns the HTTP status of an *Error in err's chain, or 0.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Status
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindAuth
}

// IsTransient reports whether retrying the request may succeed.
func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransient
}

// PublicMessage returns a message suitable for display.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
