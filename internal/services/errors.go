package services

import "errors"

// Kind is the stable error category handlers translate into status codes.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindUpstreamFailure  Kind = "upstream_failure"
	KindSignatureInvalid Kind = "signature_invalid"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func invalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the message a caller may see. Internal details are
// hidden behind a generic string.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal server error"
	}
	if e.Kind == KindUpstreamFailure {
		return e.Message
	}
	return e.Error()
}

var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthorized, Message: "authentication required"}
	ErrForbidden            = &Error{Kind: KindForbidden, Message: "insufficient permissions"}
	ErrEventNotFound        = &Error{Kind: KindNotFound, Message: "event not found"}
	ErrBookingNotFound      = &Error{Kind: KindNotFound, Message: "booking not found"}
	ErrPriceNotConfigured   = &Error{Kind: KindInvalidInput, Message: "event has no price configured; use free registration"}
	ErrPaymentRequired      = &Error{Kind: KindInvalidInput, Message: "event requires payment"}
	ErrSignatureMismatch    = &Error{Kind: KindSignatureInvalid, Message: "signature verification failed"}
	ErrPaymentMismatch      = &Error{Kind: KindInvalidInput, Message: "payment does not match order"}
	ErrPaymentNotSettled    = &Error{Kind: KindInvalidInput, Message: "payment is not captured or authorized"}
	ErrMissingOrderMetadata = &Error{Kind: KindInvalidInput, Message: "order is missing event metadata"}
	ErrAlreadyCheckedIn     = &Error{Kind: KindConflict, Message: "already checked in"}
	ErrAlreadyRegistered    = &Error{Kind: KindConflict, Message: "already registered for this event"}
	ErrBookingNotConfirmed  = &Error{Kind: KindConflict, Message: "booking is not confirmed yet"}
	ErrInvalidPass          = &Error{Kind: KindInvalidInput, Message: "invalid QR code format"}
	ErrPassMismatch         = &Error{Kind: KindInvalidInput, Message: "pass does not match booking"}
)
