// Package apierr defines the error taxonomy used across the gateway.
//
// Every error that can reach an HTTP response is one of these kinds. Internal
// packages return *Error (or wrap one with fmt.Errorf+%w) instead of ad hoc
// strings so the httpapi layer can translate failures to the right status
// code without re-deriving intent from error text.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuthentication    Kind = "authentication_failure"
	KindAuthorization     Kind = "authorization_failure"
	KindValidation        Kind = "validation_failure"
	KindNotFound          Kind = "not_found"
	KindRateLimited       Kind = "rate_limited"
	KindDuplicateAdmitted Kind = "duplicate_admission"
	KindDownstreamTrans   Kind = "downstream_transient"
	KindDownstreamFatal   Kind = "downstream_fatal"
	KindCrypto            Kind = "crypto_error"
)

var statusByKind = map[Kind]int{
	KindAuthentication:    http.StatusUnauthorized,
	KindAuthorization:     http.StatusForbidden,
	KindValidation:        http.StatusBadRequest,
	KindNotFound:          http.StatusNotFound,
	KindRateLimited:       http.StatusTooManyRequests,
	KindDuplicateAdmitted: http.StatusAccepted,
	KindDownstreamTrans:   http.StatusOK,
	KindDownstreamFatal:   http.StatusInternalServerError,
	KindCrypto:            http.StatusInternalServerError,
}

// Error is a typed API error carrying the HTTP status its kind maps to.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code this error's kind maps to.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func Authentication(detail string) *Error { return New(KindAuthentication, detail) }
func Authorization(detail string) *Error  { return New(KindAuthorization, detail) }
func Validation(detail string) *Error     { return New(KindValidation, detail) }
func NotFound(detail string) *Error       { return New(KindNotFound, detail) }
func RateLimited(detail string) *Error    { return New(KindRateLimited, detail) }
func Crypto(detail string, err error) *Error {
	return Wrap(KindCrypto, detail, err)
}
func DownstreamFatal(detail string, err error) *Error {
	return Wrap(KindDownstreamFatal, detail, err)
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusFor returns the HTTP status to use for err, defaulting to 500 for
// errors that carry no *Error in their chain.
func StatusFor(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}
