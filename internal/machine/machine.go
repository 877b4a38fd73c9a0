package machine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
	"github.com/tjst-t/qemu-qapi/internal/qga"
	"github.com/tjst-t/qemu-qapi/internal/qmp"
)

// Common errors.
var (
	ErrNoGuestAgent     = errors.New("no guest agent configured")
	ErrUnsupportedReset = errors.New("unsupported reset type")
)

// DefaultCDDevice is the removable drive used for virtual media.
const DefaultCDDevice = "ide0-cd0"

// PowerState represents the power state of the VM
type PowerState string

const (
	PowerOn  PowerState = "On"
	PowerOff PowerState = "Off"
)

// Machine drives a QEMU VM through its monitor and, optionally, its guest agent.
type Machine struct {
	qmpClient qmp.Client
	qgaClient qga.Client
	cdDevice  string
}

// New creates a new Machine with the given QMP client. guest may be nil.
func New(client qmp.Client, guest qga.Client, cdDevice string) *Machine {
	if cdDevice == "" {
		cdDevice = DefaultCDDevice
	}
	return &Machine{
		qmpClient: client,
		qgaClient: guest,
		cdDevice:  cdDevice,
	}
}

// GetPowerState returns the current power state of the VM
func (m *Machine) GetPowerState() (PowerState, error) {
	status, err := m.qmpClient.QueryStatus()
	if err != nil {
		return "", fmt.Errorf("querying VM status: %w", err)
	}

	switch status {
	case qmp.StatusRunning:
		return PowerOn, nil
	default:
		return PowerOff, nil
	}
}

// GetQMPStatus returns the raw QMP status string
func (m *Machine) GetQMPStatus() (qmp.Status, error) {
	return m.qmpClient.QueryStatus()
}

// Capabilities returns what the monitor advertised in its greeting.
func (m *Machine) Capabilities() *qmp.Capabilities {
	return m.qmpClient.Capabilities()
}

// Reset performs a reset action on the VM
func (m *Machine) Reset(resetType string) error {
	switch resetType {
	case "On":
		state, err := m.GetPowerState()
		if err != nil {
			return err
		}
		if state == PowerOn {
			return nil // already on, no-op
		}
		return m.qmpClient.Cont()
	case "ForceOff":
		return m.qmpClient.Stop()
	case "GracefulShutdown":
		// Send ACPI shutdown signal, then stop the VM.
		// The stop ensures the VM halts even without a guest OS.
		if err := m.qmpClient.SystemPowerdown(); err != nil && !qapi.IsRemote(err) {
			return err
		}
		return m.qmpClient.Stop()
	case "ForceRestart", "GracefulRestart":
		return m.qmpClient.SystemReset()
	case "Quit":
		return m.qmpClient.Quit()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedReset, resetType)
	}
}

// InsertMedia inserts virtual media into the VM
func (m *Machine) InsertMedia(image string) error {
	return m.qmpClient.BlockdevChangeMedium(m.cdDevice, image)
}

// EjectMedia ejects virtual media from the VM
func (m *Machine) EjectMedia() error {
	return m.qmpClient.BlockdevRemoveMedium(m.cdDevice)
}

// Events polls the monitor and returns every event received since the last call.
func (m *Machine) Events() ([]qapi.Event, error) {
	events, err := m.qmpClient.Poll()
	if err != nil {
		// Events read before the failure are still worth delivering.
		return append(events, m.qmpClient.Events()...), err
	}
	return events, nil
}

// Execute runs a monitor command by name and returns its raw return value.
func (m *Machine) Execute(name string, args json.RawMessage) (json.RawMessage, error) {
	var result json.RawMessage
	if err := m.qmpClient.Execute(qapi.RawCommand{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// HasGuestAgent reports whether guest operations are available.
func (m *Machine) HasGuestAgent() bool {
	return m.qgaClient != nil
}

// GuestExecute runs a guest agent command by name and returns its raw return value.
func (m *Machine) GuestExecute(name string, args json.RawMessage) (json.RawMessage, error) {
	if m.qgaClient == nil {
		return nil, ErrNoGuestAgent
	}
	var result json.RawMessage
	if err := m.qgaClient.Execute(qapi.RawCommand{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GuestPing checks that the guest agent responds.
func (m *Machine) GuestPing() error {
	if m.qgaClient == nil {
		return ErrNoGuestAgent
	}
	return m.qgaClient.Ping()
}
