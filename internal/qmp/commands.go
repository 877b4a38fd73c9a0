package qmp

import (
	"encoding/json"
)

// QMPCapabilities leaves capabilities negotiation mode and enters command mode.
type QMPCapabilities struct {
	Enable []CapabilityFlag `json:"enable,omitempty"`
}

func (QMPCapabilities) CommandName() string { return "qmp_capabilities" }

// QueryVersion returns VersionInfo.
type QueryVersion struct{}

func (QueryVersion) CommandName() string { return "query-version" }

// QueryStatus returns StatusInfo.
type QueryStatus struct{}

func (QueryStatus) CommandName() string { return "query-status" }

// StatusInfo is the result of query-status.
type StatusInfo struct {
	Running bool   `json:"running"`
	Status  Status `json:"status"`
}

type Stop struct{}

func (Stop) CommandName() string { return "stop" }

type Cont struct{}

func (Cont) CommandName() string { return "cont" }

type SystemReset struct{}

func (SystemReset) CommandName() string { return "system_reset" }

type SystemPowerdown struct{}

func (SystemPowerdown) CommandName() string { return "system_powerdown" }

type Quit struct{}

func (Quit) CommandName() string { return "quit" }

// BlockdevChangeMedium swaps the medium of a removable drive.
type BlockdevChangeMedium struct {
	Device   string `json:"device,omitempty"`
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Format   string `json:"format,omitempty"`
}

func (BlockdevChangeMedium) CommandName() string { return "blockdev-change-medium" }

// BlockdevRemoveMedium ejects the medium of a removable drive.
type BlockdevRemoveMedium struct {
	Device string `json:"device,omitempty"`
	ID     string `json:"id,omitempty"`
}

func (BlockdevRemoveMedium) CommandName() string { return "blockdev-remove-medium" }

// DeviceAdd hot-plugs a device. Props are sent alongside driver, id and bus
// in one flat argument object.
type DeviceAdd struct {
	Driver string
	ID     string
	Bus    string
	Props  map[string]any
}

func (DeviceAdd) CommandName() string { return "device_add" }

func (d DeviceAdd) MarshalJSON() ([]byte, error) {
	args := make(map[string]any, len(d.Props)+3)
	for k, v := range d.Props {
		args[k] = v
	}
	args["driver"] = d.Driver
	if d.ID != "" {
		args["id"] = d.ID
	}
	if d.Bus != "" {
		args["bus"] = d.Bus
	}
	return json.Marshal(args)
}

// DeviceDel requests removal of a device; completion is signalled by DEVICE_DELETED.
type DeviceDel struct {
	ID string `json:"id"`
}

func (DeviceDel) CommandName() string { return "device_del" }
