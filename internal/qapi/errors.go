package qapi

import (
	"errors"
	"fmt"
	"io"
)

// Common errors.
var (
	// ErrUnexpectedEOF is returned when the stream closes while a response is awaited.
	ErrUnexpectedEOF = fmt.Errorf("expected command response: %w", io.ErrUnexpectedEOF)
	// ErrInvalidData is returned for a message of the wrong kind for the session state.
	ErrInvalidData = errors.New("invalid data")
	// ErrBroken is returned by every call on a session after a fatal error.
	ErrBroken = errors.New("session is unusable after a fatal error")
	// ErrNotReady is returned when a command is sent before the greeting was read.
	ErrNotReady = errors.New("session has not completed its greeting")
)

// DecodeError reports a line that could not be parsed. The session cannot
// resynchronize after one.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRemote reports whether err is (or wraps) an error reported by the peer.
func IsRemote(err error) bool {
	var remote *Error
	return errors.As(err, &remote)
}
