package qmp

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// State tracks how far a session has progressed through the handshake.
type State int

const (
	StateUnauthenticated State = iota
	StateGreeted
	StateNegotiated
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateGreeted:
		return "greeted"
	case StateNegotiated:
		return "negotiated"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is a synchronous QMP session over a duplex stream. It is not
// safe for concurrent use; at most one command is in flight at a time.
type Session struct {
	codec  *qapi.Codec
	state  State
	events []qapi.Event
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

// State returns the current handshake state.
func (s *Session) State() State { return s.state }

// message holds any line a QMP peer may send. Its kind is decided by which
// top-level key is present.
type message struct {
	QMP       *Capabilities   `json:"QMP"`
	Event     *string         `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp qapi.Timestamp  `json:"timestamp"`
	Return    json.RawMessage `json:"return"`
	Error     *qapi.Error     `json:"error"`
	ID        json.RawMessage `json:"id"`
}

type messageKind int

const (
	kindUnknown messageKind = iota
	kindGreeting
	kindEvent
	kindResponse
)

func (k messageKind) String() string {
	switch k {
	case kindGreeting:
		return "greeting"
	case kindEvent:
		return "event"
	case kindResponse:
		return "response"
	default:
		return "unrecognized message"
	}
}

func (m *message) kind() messageKind {
	switch {
	case m.QMP != nil:
		return kindGreeting
	case m.Event != nil:
		return kindEvent
	case m.Return != nil || m.Error != nil:
		return kindResponse
	default:
		return kindUnknown
	}
}

func (s *Session) fail(err error) error {
	s.state = StateBroken
	return err
}

func (s *Session) ready() error {
	switch s.state {
	case StateBroken:
		return qapi.ErrBroken
	case StateUnauthenticated:
		return qapi.ErrNotReady
	}
	return nil
}

// ReadCapabilities reads the mandatory greeting. It must be the first line
// read from the stream.
func (s *Session) ReadCapabilities() (*Capabilities, error) {
	switch s.state {
	case StateBroken:
		return nil, qapi.ErrBroken
	case StateUnauthenticated:
	default:
		return nil, fmt.Errorf("greeting already read: %w", qapi.ErrInvalidData)
	}

	var msg message
	ok, err := s.codec.DecodeLine(&msg)
	if err != nil {
		return nil, s.fail(fmt.Errorf("reading greeting: %w", err))
	}
	if !ok {
		return nil, s.fail(fmt.Errorf("reading greeting: %w", io.ErrUnexpectedEOF))
	}
	if kind := msg.kind(); kind != kindGreeting {
		return nil, s.fail(fmt.Errorf("expected greeting, got %s: %w", kind, qapi.ErrInvalidData))
	}

	s.state = StateGreeted
	s.codec.Logger().Debug("qmp: greeting received",
		"major", msg.QMP.Version.QEMU.Major,
		"minor", msg.QMP.Version.QEMU.Minor,
		"micro", msg.QMP.Version.QEMU.Micro,
		"oob", msg.QMP.SupportsOOB())
	return msg.QMP, nil
}

// Negotiate sends qmp_capabilities, moving the session into command mode.
func (s *Session) Negotiate(enable ...CapabilityFlag) error {
	if err := s.Execute(QMPCapabilities{Enable: enable}, nil); err != nil {
		return s.fail(fmt.Errorf("negotiating capabilities: %w", err))
	}
	s.state = StateNegotiated
	return nil
}

// Handshake reads the greeting and negotiates capabilities. On failure the
// session must be discarded.
func (s *Session) Handshake() (*Capabilities, error) {
	caps, err := s.ReadCapabilities()
	if err != nil {
		return nil, err
	}
	if err := s.Negotiate(); err != nil {
		return nil, err
	}
	return caps, nil
}

// WriteCommand sends cmd without waiting for its response.
func (s *Session) WriteCommand(cmd qapi.Command) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.codec.WriteCommand(cmd); err != nil {
		return s.fail(err)
	}
	return nil
}

// ReadResponse reads until the response to the outstanding command
// arrives, queueing any events seen on the way.
func (s *Session) ReadResponse() (*qapi.Response, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	for {
		var msg message
		ok, err := s.codec.DecodeLine(&msg)
		if err != nil {
			return nil, s.fail(err)
		}
		if !ok {
			return nil, s.fail(qapi.ErrUnexpectedEOF)
		}

		switch msg.kind() {
		case kindGreeting:
			return nil, s.fail(fmt.Errorf("unexpected greeting: %w", qapi.ErrInvalidData))
		case kindEvent:
			s.events = append(s.events, qapi.Event{
				Name:      *msg.Event,
				Data:      msg.Data,
				Timestamp: msg.Timestamp,
			})
		case kindResponse:
			return &qapi.Response{Return: msg.Return, Error: msg.Error, ID: msg.ID}, nil
		default:
			return nil, s.fail(fmt.Errorf("unrecognized message: %w", qapi.ErrInvalidData))
		}
	}
}

// Execute sends cmd and decodes its return value into result. A *qapi.Error
// means the peer rejected the command and the session is still usable.
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

// Events drains the queued events in arrival order.
func (s *Session) Events() []qapi.Event {
	events := s.events
	s.events = nil
	return events
}

// PendingEvents returns the number of queued events.
func (s *Session) PendingEvents() int { return len(s.events) }

// Nop round-trips query-version so that events already sent by the peer
// land in the queue.
func (s *Session) Nop() error {
	return s.Execute(QueryVersion{}, nil)
}
