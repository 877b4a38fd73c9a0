package qapitest

import (
	"encoding/json"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// HostName reported by the guest agent stub.
const HostName = "qapitest-guest"

// NewQGAServer starts a guest agent stub. It sends no greeting and echoes
// the guest-sync id.
func NewQGAServer(socketPath string) (*Server, error) {
	srv, err := Listen(socketPath, nil)
	if err != nil {
		return nil, err
	}

	srv.Handle("guest-sync", func(args json.RawMessage) (any, error) {
		var req struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, &qapi.Error{Class: qapi.ErrorClassGeneric, Desc: "Parameter 'id' is missing"}
		}
		return req.ID, nil
	})
	srv.Handle("guest-ping", func(json.RawMessage) (any, error) { return nil, nil })
	srv.Handle("guest-get-host-name", func(json.RawMessage) (any, error) {
		return map[string]string{"host-name": HostName}, nil
	})
	srv.Handle("guest-info", func(json.RawMessage) (any, error) {
		names := []string{"guest-sync", "guest-ping", "guest-info", "guest-get-host-name"}
		commands := make([]map[string]any, 0, len(names))
		for _, name := range names {
			commands = append(commands, map[string]any{"name": name, "enabled": true, "success-response": true})
		}
		return map[string]any{"version": "8.2.0", "supported_commands": commands}, nil
	})
	return srv, nil
}
