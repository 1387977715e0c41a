// Package apperr is the error taxonomy shared by the services. Callers match
// kinds with errors.Is and map them to transport codes with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrStorage         = errors.New("storage error")
	ErrMalformedEvent  = errors.New("malformed event")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrProvider        = errors.New("payment provider error")
)

// Error carries the kind, the failing operation and an optional cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return e.Op + ": " + msg
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, what string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: what + " not found"}
}

func Conflict(op, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func SlotUnavailable(op, date, start string) error {
	return &Error{Kind: ErrSlotUnavailable, Op: op, Msg: fmt.Sprintf("slot %s %s is no longer available", date, start)}
}

func MalformedEvent(op, format string, args ...any) error {
	return &Error{Kind: ErrMalformedEvent, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(op, msg string) error {
	return &Error{Kind: ErrUnauthorized, Op: op, Msg: msg}
}

// Provider wraps a failed call to the payment provider.
func Provider(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrProvider, Op: op, Err: err}
}

// Storage wraps a store failure. Errors that already carry a kind pass
// through untouched so a NotFound raised inside a transaction stays NotFound.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return &Error{Kind: ErrStorage, Op: op, Err: err}
}

// Kind returns the taxonomy sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrSlotUnavailable, ErrMalformedEvent, ErrUnauthorized, ErrProvider, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrValidation, ErrMalformedEvent:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrSlotUnavailable:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is safe to show an end user. Storage and unknown failures
// collapse to a generic message; the detail belongs in logs.
func PublicMessage(err error) string {
	var e *Error
	switch Kind(err) {
	case nil, ErrStorage:
		return "internal error"
	case ErrProvider:
		return "payment provider unavailable"
	}
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return Kind(err).Error()
}
