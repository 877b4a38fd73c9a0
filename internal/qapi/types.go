// Package qapi implements the JSON-line framing shared by QMP and the QEMU
// guest agent: a duplex stream adapter, a line codec, and the wire types
// for commands, responses, errors and events.
package qapi

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command is a single remote procedure call. The value itself is marshalled
// as the "arguments" object; an empty object is left off the wire.
type Command interface {
	CommandName() string
}

// ErrorClass categorizes a remote-reported failure
type ErrorClass string

const (
	ErrorClassGeneric         ErrorClass = "GenericError"
	ErrorClassCommandNotFound ErrorClass = "CommandNotFound"
	ErrorClassDeviceNotActive ErrorClass = "DeviceNotActive"
	ErrorClassDeviceNotFound  ErrorClass = "DeviceNotFound"
	ErrorClassKVMMissingCap   ErrorClass = "KVMMissingCap"
)

// Error is a well-formed error payload returned by the peer. It is
// recoverable: the session stays usable after a command fails this way.
type Error struct {
	Class ErrorClass `json:"class"`
	Desc  string     `json:"desc"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("QMP error [%s]: %s", e.Class, e.Desc)
}

// Response correlates to exactly one command sent on the session.
type Response struct {
	Return json.RawMessage `json:"return,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     json.RawMessage `json:"id,omitempty"`
}

// Result returns the remote error if the peer reported one, otherwise it
// decodes the return value into v. A nil v discards the value.
func (r *Response) Result(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if v == nil || len(r.Return) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Return, v); err != nil {
		return &DecodeError{Line: r.Return, Err: err}
	}
	return nil
}

// Timestamp is the wall-clock time attached to a QMP event.
type Timestamp struct {
	Seconds      int64 `json:"seconds"`
	Microseconds int64 `json:"microseconds"`
}

// Time converts the timestamp to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, t.Microseconds*1000)
}

// Event is an asynchronous notification pushed by a QMP peer.
type Event struct {
	Name      string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp Timestamp       `json:"timestamp"`
}

// DecodeData unmarshals the event payload into v.
func (e *Event) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Empty is the result type of commands that return {}.
type Empty struct{}

// RawCommand executes a command by name with pre-encoded arguments.
type RawCommand struct {
	Name      string
	Arguments json.RawMessage
}

func (c RawCommand) CommandName() string { return c.Name }

// MarshalJSON emits the pre-encoded arguments as-is.
func (c RawCommand) MarshalJSON() ([]byte, error) {
	if len(c.Arguments) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(c.Arguments) {
		return nil, fmt.Errorf("arguments for %q are not valid JSON", c.Name)
	}
	return c.Arguments, nil
}
