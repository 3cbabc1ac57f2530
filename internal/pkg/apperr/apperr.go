// Package apperr classifies request failures so the HTTP layer can map them to
// a status code and a client-facing message without inspecting causes.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind is the client-facing error category.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindUpstream     Kind = "upstream_error"
	KindPersistence  Kind = "persistence_error"
	KindInternal     Kind = "internal_error"
)

// Error is a classified error with a public message and optional field details.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to an HTTP status code. Upstream and persistence
// failures are client errors so gateways do not retry a webhook blindly.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindUpstream, KindPersistence:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Operational reports whether the error points at a fault on our side that
// operators should look at, whatever status it maps to.
func (e *Error) Operational() bool {
	switch e.Kind {
	case KindUpstream, KindPersistence, KindInternal:
		return true
	}
	return false
}

// Opt decorates an Error.
type Opt func(*Error)

// WithFields attaches per-field validation messages.
func WithFields(fields map[string]string) Opt {
	return func(e *Error) {
		e.Fields = fields
	}
}

func New(kind Kind, err error, msg string, opts ...Opt) error {
	e := &Error{Kind: kind, Message: msg, Err: err}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Validation(msg string, opts ...Opt) error {
	return New(KindValidation, nil, msg, opts...)
}

func Unauthorized(msg string) error {
	return New(KindUnauthorized, nil, msg)
}

func NotFound(msg string) error {
	return New(KindNotFound, nil, msg)
}

func Upstream(err error, msg string) error {
	return New(KindUpstream, err, msg)
}

func Persistence(err error, msg string) error {
	return New(KindPersistence, err, msg)
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Public returns the message that is safe to show to clients. Upstream and
// persistence errors include the cause, matching what operators need when a
// request fails.
func (e *Error) Public() string {
	switch e.Kind {
	case KindUpstream, KindPersistence:
		if e.Err != nil {
			return e.Error()
		}
	}
	return e.Message
}
