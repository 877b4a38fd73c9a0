// Package qga implements a synchronous session with the QEMU guest agent.
package qga

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// State tracks whether the session has been synchronized.
type State int

const (
	StateUnsynced State = iota
	StateSynced
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "unsynced"
	case StateSynced:
		return "synced"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is a synchronous guest agent session. It is not safe for
// concurrent use.
type Session struct {
	codec *qapi.Codec
	state State
}

// New wraps a single transport, buffering its read side.
func New(rw io.ReadWriter, opts ...qapi.Option) *Session {
	return NewSession(qapi.FromReadWriter(rw), opts...)
}

// NewSession creates a session over an already split stream.
func NewSession(s *qapi.Stream, opts ...qapi.Option) *Session {
	return &Session{codec: qapi.NewCodec(s, opts...)}
}

// Stream hands the underlying stream back to the caller.
func (s *Session) Stream() *qapi.Stream { return s.codec.Stream() }

// State returns the current sync state.
func (s *Session) State() State { return s.state }

func (s *Session) fail(err error) error {
	s.state = StateBroken
	return err
}

// WriteCommand sends cmd without waiting for its response.
func (s *Session) WriteCommand(cmd qapi.Command) error {
	if s.state == StateBroken {
		return qapi.ErrBroken
	}
	if err := s.codec.WriteCommand(cmd); err != nil {
		return s.fail(err)
	}
	return nil
}

// ReadResponse reads the response to the outstanding command. The agent
// has no event channel, so anything that is not response-shaped is a
// protocol violation.
func (s *Session) ReadResponse() (*qapi.Response, error) {
	if s.state == StateBroken {
		return nil, qapi.ErrBroken
	}

	var resp qapi.Response
	ok, err := s.codec.DecodeLine(&resp)
	if err != nil {
		return nil, s.fail(err)
	}
	if !ok {
		return nil, s.fail(qapi.ErrUnexpectedEOF)
	}
	if resp.Return == nil && resp.Error == nil {
		return nil, s.fail(fmt.Errorf("expected response: %w", qapi.ErrInvalidData))
	}
	return &resp, nil
}

// Execute sends cmd and decodes its return value into result.
func (s *Session) Execute(cmd qapi.Command, result any) error {
	if err := s.WriteCommand(cmd); err != nil {
		return err
	}
	resp, err := s.ReadResponse()
	if err != nil {
		return err
	}
	return resp.Result(result)
}

// Handshake sends guest-sync with a fresh id and checks that the agent
// echoes it. A different value means a stale response is sitting on the
// channel, so the session is not usable.
func (s *Session) Handshake() error {
	sync := GuestSync{ID: nextNonce()}

	var raw json.RawMessage
	if err := s.Execute(sync, &raw); err != nil {
		if qapi.IsRemote(err) {
			return err
		}
		return s.fail(fmt.Errorf("guest-sync: %w", err))
	}
	var echoed int64
	if err := json.Unmarshal(raw, &echoed); err != nil || echoed != sync.ID {
		return s.fail(fmt.Errorf("guest-sync handshake failed: sent %d, got %s: %w", sync.ID, raw, qapi.ErrInvalidData))
	}

	s.state = StateSynced
	s.codec.Logger().Debug("qga: synced", "id", sync.ID)
	return nil
}
