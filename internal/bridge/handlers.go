package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tjst-t/qemu-qapi/internal/machine"
	"github.com/tjst-t/qemu-qapi/internal/qapi"
	"github.com/tjst-t/qemu-qapi/internal/qmp"
)

const maxBodySize = 1 << 20

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	root := ServiceRoot{GuestAgent: s.machine.HasGuestAgent()}
	if caps := s.machine.Capabilities(); caps != nil {
		root.Version = caps.Version
		root.Capabilities = caps.Flags()
		root.OOB = caps.SupportsOOB()
	}
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.machine.GetQMPStatus()
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}

	power := machine.PowerOff
	if status == qmp.StatusRunning {
		power = machine.PowerOn
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		PowerState: string(power),
		Status:     string(status),
	})
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	if err := s.machine.Reset(action); err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	log.Printf("bridge: power action %s [%s]", action, r.Header.Get(RequestIDHeader))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInsertMedia(w http.ResponseWriter, r *http.Request) {
	var req MediaRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil || req.Image == "" {
		writeError(w, http.StatusBadRequest, ClassBadRequest, "body must be {\"image\": \"<path>\"}")
		return
	}
	if err := s.machine.InsertMedia(req.Image); err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEjectMedia(w http.ResponseWriter, r *http.Request) {
	if err := s.machine.EjectMedia(); err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQMPCommand(w http.ResponseWriter, r *http.Request) {
	s.executeCommand(w, r, s.machine.Execute)
}

func (s *Server) handleGuestCommand(w http.ResponseWriter, r *http.Request) {
	s.executeCommand(w, r, s.machine.GuestExecute)
}

func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request, exec func(string, json.RawMessage) (json.RawMessage, error)) {
	command := mux.Vars(r)["command"]

	args, err := readArguments(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ClassBadRequest, err.Error())
		return
	}

	result, err := exec(command, args)
	if err != nil {
		s.writeCommandError(w, r, err)
		return
	}
	if result == nil {
		result = json.RawMessage("{}")
	}
	writeJSON(w, http.StatusOK, ReturnResponse{Return: result})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.machine.Events()
	if err != nil && len(events) == 0 {
		s.writeCommandError(w, r, err)
		return
	}
	if err != nil {
		log.Printf("bridge: event poll failed after %d events: %v", len(events), err)
	}
	if events == nil {
		events = []qapi.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// readArguments returns the request body as a JSON object, or nil when empty.
func readArguments(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return body, nil
}

// writeCommandError maps remote errors to 422 so clients can branch on the
// class; anything else means the monitor connection itself failed.
func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, err error) {
	var remote *qapi.Error
	switch {
	case errors.As(err, &remote):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: *remote})
	case errors.Is(err, machine.ErrUnsupportedReset):
		writeError(w, http.StatusBadRequest, ClassBadRequest, err.Error())
	case errors.Is(err, machine.ErrNoGuestAgent):
		writeError(w, http.StatusNotImplemented, ClassNoAgent, err.Error())
	default:
		log.Printf("bridge: command failed [%s]: %v", r.Header.Get(RequestIDHeader), err)
		writeError(w, http.StatusBadGateway, ClassBridgeError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, class qapi.ErrorClass, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error: qapi.Error{Class: class, Desc: message},
	})
}
