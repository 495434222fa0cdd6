package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure; the HTTP layer maps it to a status.
type Kind int

const (
	KindServerError Kind = iota
	KindBadRequest
	KindUnauthorized
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "server_error"
	}
}

// Error is returned by every service operation. Message is safe to show to
// the caller; Err holds the internal cause and is never exposed.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(msg string) *Error   { return &Error{Kind: KindBadRequest, Message: msg} }
func unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func notFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }

func serverError(msg string, err error) *Error {
	return &Error{Kind: KindServerError, Message: msg, Err: err}
}

// KindOf extracts the Kind of err; anything that is not an *Error is a server error.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindServerError
}

// Messages shared by several operations.
const (
	msgInvalidCredentials = "Invalid email or password."
	msgUserNotFound       = "User not found."
	msgServer             = "Something went wrong, please try again later."
)
