package qapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// CommandEnvelope is the wire shape of an outgoing command.
type CommandEnvelope struct {
	Execute   string          `json:"execute"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger traces every line read and written at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Codec frames messages as one JSON value per newline-terminated line.
type Codec struct {
	stream *Stream
	buf    []byte
	logger *slog.Logger
}

// NewCodec creates a Codec over the given stream.
func NewCodec(s *Stream, opts ...Option) *Codec {
	c := &Codec{
		stream: s,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream returns the underlying duplex stream.
func (c *Codec) Stream() *Stream { return c.stream }

// Logger returns the trace logger.
func (c *Codec) Logger() *slog.Logger { return c.logger }

func (c *Codec) readLine() ([]byte, error) {
	c.buf = c.buf[:0]
	for {
		frag, err := c.stream.r.ReadSlice('\n')
		c.buf = append(c.buf, frag...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return c.buf, err
	}
}

// DecodeLine reads one line and parses it into v. It returns false with a
// nil error when the peer closed the stream with no partial line pending.
func (c *Codec) DecodeLine(v any) (bool, error) {
	line, err := c.readLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading line: %w", err)
	}
	if len(line) == 0 {
		return false, nil
	}

	c.logger.Debug("<-", "line", string(bytes.TrimRight(line, "\r\n")))

	if err := json.Unmarshal(line, v); err != nil {
		return false, &DecodeError{Line: bytes.Clone(line), Err: err}
	}
	return true, nil
}

// EncodeCommand returns the wire line for cmd, including the trailing newline.
func EncodeCommand(cmd Command) ([]byte, error) {
	args, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshaling arguments for %s: %w", cmd.CommandName(), err)
	}
	if bytes.Equal(args, []byte("{}")) || bytes.Equal(args, []byte("null")) {
		args = nil
	}

	data, err := json.Marshal(CommandEnvelope{
		Execute:   cmd.CommandName(),
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling command %s: %w", cmd.CommandName(), err)
	}
	return append(data, '\n'), nil
}

// WriteCommand writes cmd as a single line and flushes immediately; the
// peer does not act until the terminator is visible.
func (c *Codec) WriteCommand(cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.logger.Debug("->", "execute", cmd.CommandName(), "line", string(data[:len(data)-1]))

	if _, err := c.stream.Write(data); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	if err := c.stream.Flush(); err != nil {
		return fmt.Errorf("flushing command: %w", err)
	}
	return nil
}
