package mediasoupclient

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState     = errors.New("invalid state")
	ErrUnsupportedMedia = errors.New("unsupported media")
	ErrEngine           = errors.New("media engine failure")
	ErrSignaling        = errors.New("signaling failure")
	ErrCancelled        = errors.New("operation cancelled")
	ErrAlreadyLoaded    = errors.New("already loaded")
)

// TypeError is returned for invalid arguments.
type TypeError struct {
	message string
}

func NewTypeError(format string, args ...interface{}) error {
	return TypeError{message: fmt.Sprintf(format, args...)}
}

func (e TypeError) Error() string {
	return fmt.Sprintf("TypeError:%s", e.message)
}

// mediaError is the shared shape of the typed errors below: a name, a message,
// a sentinel the error matches with errors.Is and an optional cause.
type mediaError struct {
	name     string
	message  string
	sentinel error
	cause    error
}

func (e mediaError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s:%s: %v", e.name, e.message, e.cause)
	}
	return fmt.Sprintf("%s:%s", e.name, e.message)
}

func (e mediaError) Unwrap() error {
	return e.cause
}

func (e mediaError) Is(target error) bool {
	return target == e.sentinel
}

// UnsupportedError indicating not support for something.
type UnsupportedError struct{ mediaError }

func NewUnsupportedError(format string, args ...interface{}) error {
	return UnsupportedError{mediaError{
		name:     "UnsupportedError",
		message:  fmt.Sprintf(format, args...),
		sentinel: ErrUnsupportedMedia,
	}}
}

// InvalidStateError produced when calling a method in an invalid state.
type InvalidStateError struct{ mediaError }

func NewInvalidStateError(format string, args ...interface{}) error {
	return InvalidStateError{mediaError{
		name:     "InvalidStateError",
		message:  fmt.Sprintf(format, args...),
		sentinel: ErrInvalidState,
	}}
}

func newAlreadyLoadedError() error {
	return InvalidStateError{mediaError{
		name:     "InvalidStateError",
		message:  "already loaded",
		sentinel: ErrAlreadyLoaded,
	}}
}

// EngineError wraps a failure reported by the media engine.
type EngineError struct{ mediaError }

func NewEngineError(cause error, format string, args ...interface{}) error {
	return EngineError{mediaError{
		name:     "EngineError",
		message:  fmt.Sprintf(format, args...),
		sentinel: ErrEngine,
		cause:    cause,
	}}
}

// SignalingError wraps a failure of the signaling channel. Method is the
// signaling method that failed.
type SignalingError struct {
	mediaError
	Method string
}

func NewSignalingError(method string, cause error) error {
	return SignalingError{
		mediaError: mediaError{
			name:     "SignalingError",
			message:  fmt.Sprintf("%s request failed", method),
			sentinel: ErrSignaling,
			cause:    cause,
		},
		Method: method,
	}
}

// CancelledError is returned by operations aborted because their transport
// closed or their context ended.
type CancelledError struct{ mediaError }

func NewCancelledError(cause error, format string, args ...interface{}) error {
	return CancelledError{mediaError{
		name:     "CancelledError",
		message:  fmt.Sprintf(format, args...),
		sentinel: ErrCancelled,
		cause:    cause,
	}}
}

// asEngineError keeps errors that already carry a kind and wraps the others as
// EngineError.
func asEngineError(err error, op string) error {
	if err == nil || isClassified(err) {
		return err
	}
	return NewEngineError(err, "%s failed", op)
}

func isClassified(err error) bool {
	var typeErr TypeError

	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrUnsupportedMedia) ||
		errors.Is(err, ErrEngine) ||
		errors.Is(err, ErrSignaling) ||
		errors.Is(err, ErrCancelled) ||
		errors.As(err, &typeErr)
}
