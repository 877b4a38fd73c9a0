package qapitest

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// Version reported by the stub peers.
var Version = map[string]any{
	"qemu":    map[string]int{"major": 8, "minor": 2, "micro": 0},
	"package": "qapitest",
}

// QMPServer simulates a QEMU monitor with a tiny VM state machine.
type QMPServer struct {
	*Server

	mu     sync.Mutex
	status string
	media  map[string]string
}

// NewQMPServer starts a QMP stub that advertises out-of-band support.
func NewQMPServer(socketPath string) (*QMPServer, error) {
	greeting := map[string]any{
		"QMP": map[string]any{
			"version":      Version,
			"capabilities": []string{"oob"},
		},
	}
	srv, err := Listen(socketPath, greeting)
	if err != nil {
		return nil, err
	}

	m := &QMPServer{
		Server: srv,
		status: "running",
		media:  make(map[string]string),
	}
	m.registerDefaults()
	return m, nil
}

func (m *QMPServer) registerDefaults() {
	m.Handle("qmp_capabilities", func(json.RawMessage) (any, error) { return nil, nil })
	m.Handle("query-version", func(json.RawMessage) (any, error) { return Version, nil })
	m.Handle("query-status", func(json.RawMessage) (any, error) {
		status := m.Status()
		return map[string]any{
			"running": status == "running",
			"status":  status,
		}, nil
	})
	m.Handle("stop", m.transition("paused", "STOP", nil))
	m.Handle("cont", m.transition("running", "RESUME", nil))
	m.Handle("quit", m.transition("shutdown", "SHUTDOWN", map[string]any{"guest": false, "reason": "host-qmp-quit"}))
	m.Handle("system_reset", func(json.RawMessage) (any, error) {
		m.QueueEvent("RESET", map[string]any{"guest": false, "reason": "host-qmp-system-reset"})
		return nil, nil
	})
	m.Handle("system_powerdown", func(json.RawMessage) (any, error) {
		m.QueueEvent("POWERDOWN", nil)
		return nil, nil
	})
	m.Handle("blockdev-change-medium", func(args json.RawMessage) (any, error) {
		var req struct {
			Device   string `json:"device"`
			Filename string `json:"filename"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, &qapi.Error{Class: qapi.ErrorClassGeneric, Desc: err.Error()}
		}
		m.mu.Lock()
		m.media[req.Device] = req.Filename
		m.mu.Unlock()
		return nil, nil
	})
	m.Handle("blockdev-remove-medium", func(args json.RawMessage) (any, error) {
		var req struct {
			Device string `json:"device"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, &qapi.Error{Class: qapi.ErrorClassGeneric, Desc: err.Error()}
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.media[req.Device]; !ok {
			return nil, &qapi.Error{
				Class: qapi.ErrorClassDeviceNotFound,
				Desc:  fmt.Sprintf("Device '%s' not found", req.Device),
			}
		}
		delete(m.media, req.Device)
		return nil, nil
	})
}

func (m *QMPServer) transition(status, event string, data any) HandlerFunc {
	return func(json.RawMessage) (any, error) {
		m.SetStatus(status)
		m.QueueEvent(event, data)
		return nil, nil
	}
}

// SetStatus overrides the simulated run state.
func (m *QMPServer) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Status returns the simulated run state.
func (m *QMPServer) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Media returns the image inserted in device, if any.
func (m *QMPServer) Media(device string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image, ok := m.media[device]
	return image, ok
}
