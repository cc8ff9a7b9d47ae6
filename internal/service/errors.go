package service

import "errors"

// Validation errors.
var (
	ErrMissingFields    = errors.New("all required fields must be provided")
	ErrTermsNotAccepted = errors.New("the terms of use and the GDPR consent declaration must be accepted")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidID        = errors.New("invalid id format")
	ErrInvalidMessage   = errors.New("invalid message type")
	ErrInvalidMetadata  = errors.New("metadata must be a JSON value")
)

// Guardian decision errors.
var (
	ErrChildNotFound      = errors.New("child not found")
	ErrAlreadyAuthorized  = errors.New("this child has already been authorized")
	ErrAlreadyRejected    = errors.New("this child has already been rejected")
	ErrAlreadyDecided     = errors.New("this child's account has already been decided")
	ErrGuardianMismatch   = errors.New("guardian email does not match the registered one")
	ErrInvalidToken       = errors.New("invalid authorization token")
	ErrGuardianExists     = errors.New("a guardian is already registered with this email")
	ErrGuardianSaveFailed = errors.New("could not save guardian data, please try again")
)

// Chat errors.
var (
	ErrChatNotFound       = errors.New("chat not found or inactive")
	ErrMessageNotFound    = errors.New("message not found")
	ErrNoAttachment       = errors.New("message has no stored attachment")
	ErrStorageUnavailable = errors.New("attachment storage is not configured")
	ErrUnknownAction      = errors.New("unknown action")
)

// UpstreamError carries a message from the database that is returned to the
// caller as is.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(err error, fallback string) *UpstreamError {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &UpstreamError{Message: msg, Err: err}
}
