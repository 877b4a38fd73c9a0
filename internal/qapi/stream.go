package qapi

import (
	"bufio"
	"io"
)

// flusher is implemented by buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// Stream joins an independently owned read half and write half into one
// duplex handle. Reads are line-buffered; writes go straight to the
// underlying writer.
type Stream struct {
	r *bufio.Reader
	w io.Writer
}

// NewStream creates a Stream reading from r and writing to w. If r is
// already a *bufio.Reader it is used as-is.
func NewStream(r io.Reader, w io.Writer) *Stream {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Stream{r: br, w: w}
}

// FromReadWriter splits a single transport (typically a net.Conn) into a
// buffered read path and a direct write path.
func FromReadWriter(rw io.ReadWriter) *Stream {
	if s, ok := rw.(*Stream); ok {
		return s
	}
	return NewStream(rw, rw)
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// ReadBytes reads until the first occurrence of delim.
func (s *Stream) ReadBytes(delim byte) ([]byte, error) {
	return s.r.ReadBytes(delim)
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush flushes the write half if it buffers, and is a no-op otherwise.
func (s *Stream) Flush() error {
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Reader returns the buffered read half.
func (s *Stream) Reader() *bufio.Reader { return s.r }

// Writer returns the write half.
func (s *Stream) Writer() io.Writer { return s.w }
