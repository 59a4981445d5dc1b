// Package apperr classifies failures crossing the data-layer boundary so the
// UI can choose messaging without inspecting causes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindAuthRequired marks a mutation attempted without a resolved actor.
	KindAuthRequired
	// KindForbidden marks a write scoped to records the actor does not own.
	KindForbidden
	// KindValidation marks payloads or filters rejected at the boundary.
	KindValidation
	// KindTransient marks upstream fetch failures (network, missing RPC,
	// schema drift). Read paths fall back on it; mutations surface it.
	KindTransient
	// KindGeocoding marks geocoder failures. Never fatal to a write.
	KindGeocoding
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth_required"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindGeocoding:
		return "geocoding"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

func Newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(k Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: msg, Err: err}
}

// KindOf extracts the outermost classified kind, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// HTTPStatus maps a kind to the status the HTTP surface responds with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindTransient, KindGeocoding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
