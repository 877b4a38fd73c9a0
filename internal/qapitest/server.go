// Package qapitest provides stub QMP and guest agent peers listening on
// UNIX sockets, for tests and manual experiments without a running QEMU.
package qapitest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// HandlerFunc answers one command. Returning a *qapi.Error sends it to the
// client as an error response.
type HandlerFunc func(args json.RawMessage) (any, error)

// Server is a line-oriented stub peer.
type Server struct {
	listener net.Listener
	greeting []byte
	handlers map[string]HandlerFunc
	pending  []qapi.Event
	commands []qapi.CommandEnvelope
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// Listen starts a stub peer on socketPath. If greeting is non-nil it is
// sent as the first line of every connection.
func Listen(socketPath string, greeting any) (*Server, error) {
	// Remove any existing socket
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}

	s := &Server{
		listener: listener,
		handlers: make(map[string]HandlerFunc),
	}
	if greeting != nil {
		data, err := json.Marshal(greeting)
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("marshaling greeting: %w", err)
		}
		s.greeting = append(data, '\n')
	}

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Handle registers fn for the named command, replacing any existing handler.
func (s *Server) Handle(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

// QueueEvent schedules an event to be written ahead of the next response.
func (s *Server) QueueEvent(name string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueEventLocked(name, data)
}

func (s *Server) queueEventLocked(name string, data any) {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	now := time.Now()
	s.pending = append(s.pending, qapi.Event{
		Name: name,
		Data: raw,
		Timestamp: qapi.Timestamp{
			Seconds:      now.Unix(),
			Microseconds: int64(now.Nanosecond() / 1000),
		},
	})
}

// Commands returns the commands received so far, in order.
func (s *Server) Commands() []qapi.CommandEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]qapi.CommandEnvelope(nil), s.commands...)
}

// LastCommand returns the name of the most recent command.
func (s *Server) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commands) == 0 {
		return ""
	}
	return s.commands[len(s.commands)-1].Execute
}

// Close stops accepting connections.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if s.greeting != nil {
		if _, err := conn.Write(s.greeting); err != nil {
			return
		}
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd qapi.CommandEnvelope
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			log.Printf("qapitest: invalid command: %v", err)
			continue
		}

		out, err := s.dispatch(cmd)
		if err != nil {
			log.Printf("qapitest: %v", err)
			return
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

// dispatch runs the handler and returns queued events followed by the response.
func (s *Server) dispatch(cmd qapi.CommandEnvelope) ([]byte, error) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	handler, ok := s.handlers[cmd.Execute]
	s.mu.Unlock()

	resp := qapi.Response{}
	if !ok {
		resp.Error = &qapi.Error{
			Class: qapi.ErrorClassCommandNotFound,
			Desc:  fmt.Sprintf("The command %s has not been found", cmd.Execute),
		}
	} else {
		result, err := handler(cmd.Arguments)
		if err != nil {
			remote, ok := err.(*qapi.Error)
			if !ok {
				remote = &qapi.Error{Class: qapi.ErrorClassGeneric, Desc: err.Error()}
			}
			resp.Error = remote
		} else {
			if result == nil {
				result = qapi.Empty{}
			}
			raw, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("marshaling result of %s: %w", cmd.Execute, err)
			}
			resp.Return = raw
		}
	}

	s.mu.Lock()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	var out []byte
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("marshaling event %s: %w", event.Name, err)
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	out = append(out, data...)
	return append(out, '\n'), nil
}
