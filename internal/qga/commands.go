package qga

// GuestSync echoes id back; it is used to flush stale responses before the
// first real command.
type GuestSync struct {
	ID int64 `json:"id"`
}

func (GuestSync) CommandName() string { return "guest-sync" }

// GuestPing checks that the agent is alive.
type GuestPing struct{}

func (GuestPing) CommandName() string { return "guest-ping" }

// GuestInfo returns Info.
type GuestInfo struct{}

func (GuestInfo) CommandName() string { return "guest-info" }

// SupportedCommand describes one command the agent implements.
type SupportedCommand struct {
	Name            string `json:"name"`
	Enabled         bool   `json:"enabled"`
	SuccessResponse bool   `json:"success-response"`
}

// Info is the result of guest-info.
type Info struct {
	Version           string             `json:"version"`
	SupportedCommands []SupportedCommand `json:"supported_commands"`
}

// GuestGetHostName returns HostName.
type GuestGetHostName struct{}

func (GuestGetHostName) CommandName() string { return "guest-get-host-name" }

// HostName is the result of guest-get-host-name.
type HostName struct {
	HostName string `json:"host-name"`
}
