package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindInsufficientInventory Kind = "insufficient_inventory"
	KindInvalidTransition     Kind = "invalid_transition"
	KindSignature             Kind = "signature_verification"
	KindGateway               Kind = "payment_gateway"
)

// Error carries a classification, a message safe to show callers and an
// internal message for logs, mirroring how webhook errors are reported.
type Error struct {
	Kind     Kind
	Public   string
	Internal string
	Err      error
}

func (e *Error) Error() string {
	if e.Internal != "" {
		return e.Internal
	}
	return e.Public
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the taxonomy onto response codes. Gateway failures are 502
// so the caller knows to retry with backoff.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindInsufficientInventory:
		return http.StatusUnprocessableEntity
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: KindValidation, Public: msg, Internal: msg}
}

func NotFound(what, id string) *Error {
	msg := fmt.Sprintf("%s %s not found", what, id)
	return &Error{Kind: KindNotFound, Public: msg, Internal: msg}
}

func Conflict(format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: KindConflict, Public: msg, Internal: msg}
}

func InsufficientInventory(productID string, want, have int) *Error {
	return &Error{
		Kind:     KindInsufficientInventory,
		Public:   fmt.Sprintf("insufficient stock for product %s", productID),
		Internal: fmt.Sprintf("insufficient stock for product %s: want %d, have %d", productID, want, have),
	}
}

func InvalidTransition(from, to string) *Error {
	msg := fmt.Sprintf("invalid order status transition %s -> %s", from, to)
	return &Error{Kind: KindInvalidTransition, Public: msg, Internal: msg}
}

func Signature(err error) *Error {
	return &Error{
		Kind:     KindSignature,
		Public:   "webhook signature verification failed",
		Internal: fmt.Sprintf("webhook signature verification failed: %v", err),
		Err:      err,
	}
}

func Gateway(err error, context string) *Error {
	return &Error{
		Kind:     KindGateway,
		Public:   "payment gateway error",
		Internal: fmt.Sprintf("%s: %v", context, err),
		Err:      err,
	}
}

// KindOf classifies any error; wrapped taxonomy errors keep their kind,
// everything else is reported as an empty kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// Retryable reports whether the caller should retry with backoff.
func Retryable(err error) bool { return KindOf(err) == KindGateway }

// HTTPStatusOf resolves the status for any error, defaulting to 500.
func HTTPStatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the caller-safe message for an error. Unclassified
// errors get a generic message so internals never leak into responses.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Public
	}
	return "internal error"
}
