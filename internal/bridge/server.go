// Package bridge exposes a machine's monitor and guest agent over HTTP,
// with a WebSocket stream for QMP events.
package bridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tjst-t/qemu-qapi/internal/machine"
	"github.com/tjst-t/qemu-qapi/internal/qapi"
	"github.com/tjst-t/qemu-qapi/internal/qmp"
)

// DefaultPollInterval is how often the event stream polls the monitor.
const DefaultPollInterval = time.Second

// MachineInterface defines what the bridge needs from the machine layer
type MachineInterface interface {
	GetPowerState() (machine.PowerState, error)
	GetQMPStatus() (qmp.Status, error)
	Capabilities() *qmp.Capabilities
	Reset(resetType string) error
	InsertMedia(image string) error
	EjectMedia() error
	Events() ([]qapi.Event, error)
	Execute(name string, args json.RawMessage) (json.RawMessage, error)
	HasGuestAgent() bool
	GuestExecute(name string, args json.RawMessage) (json.RawMessage, error)
}

// Server is the bridge HTTP server
type Server struct {
	router       *mux.Router
	machine      MachineInterface
	user         string
	pass         string
	pollInterval time.Duration
}

// NewServer creates a new bridge server. Basic auth is enforced when both
// user and pass are set.
func NewServer(m MachineInterface, user, pass string, pollInterval time.Duration) *Server {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	s := &Server{
		router:       mux.NewRouter(),
		machine:      m,
		user:         user,
		pass:         pass,
		pollInterval: pollInterval,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Apply middleware
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.trailingSlashMiddleware)
	if s.user != "" && s.pass != "" {
		s.router.Use(s.basicAuthMiddleware)
	}

	s.router.HandleFunc("/v1", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/v1/", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/v1/power/{action}", s.handlePower).Methods("POST")
	s.router.HandleFunc("/v1/media", s.handleInsertMedia).Methods("POST")
	s.router.HandleFunc("/v1/media", s.handleEjectMedia).Methods("DELETE")

	s.router.HandleFunc("/v1/qmp/{command}", s.handleQMPCommand).Methods("POST")
	s.router.HandleFunc("/v1/guest/{command}", s.handleGuestCommand).Methods("POST")

	s.router.HandleFunc("/v1/events", s.handleEvents).Methods("GET")
	s.router.HandleFunc("/v1/events/ws", s.handleEventStream).Methods("GET")
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
