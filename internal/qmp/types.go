package qmp

import (
	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// Status represents QEMU VM running status
type Status string

const (
	StatusRunning       Status = "running"
	StatusShutdown      Status = "shutdown"
	StatusPaused        Status = "paused"
	StatusPrelaunch     Status = "prelaunch"
	StatusInMigrate     Status = "inmigrate"
	StatusSuspended     Status = "suspended"
	StatusGuestPanicked Status = "guest-panicked"
)

// Event names emitted by QEMU that this module reacts to
const (
	EventShutdown      = "SHUTDOWN"
	EventPowerdown     = "POWERDOWN"
	EventReset         = "RESET"
	EventStop          = "STOP"
	EventResume        = "RESUME"
	EventSuspend       = "SUSPEND"
	EventWakeup        = "WAKEUP"
	EventDeviceDeleted = "DEVICE_DELETED"
)

// Client is the interface for QMP communication
type Client interface {
	Connect() error
	QueryStatus() (Status, error)
	SystemPowerdown() error
	SystemReset() error
	Stop() error
	Cont() error
	Quit() error
	BlockdevChangeMedium(device, filename string) error
	BlockdevRemoveMedium(device string) error
	Execute(cmd qapi.Command, result any) error
	// Events drains events queued by earlier commands without touching the socket.
	Events() []qapi.Event
	// Poll round-trips a no-op command and returns every event queued so far.
	Poll() ([]qapi.Event, error)
	Capabilities() *Capabilities
	Close() error
}

// ShutdownEvent is the payload of SHUTDOWN.
type ShutdownEvent struct {
	Guest  bool   `json:"guest"`
	Reason string `json:"reason"`
}

// DeviceDeletedEvent is the payload of DEVICE_DELETED.
type DeviceDeletedEvent struct {
	Device string `json:"device,omitempty"`
	Path   string `json:"path"`
}
