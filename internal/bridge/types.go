package bridge

import (
	"github.com/tjst-t/qemu-qapi/internal/qapi"
	"github.com/tjst-t/qemu-qapi/internal/qmp"
)

// ServiceRoot describes the bridge and the monitor behind it.
type ServiceRoot struct {
	Version      qmp.VersionInfo      `json:"version"`
	Capabilities []qmp.CapabilityFlag `json:"capabilities"`
	OOB          bool                 `json:"oob"`
	GuestAgent   bool                 `json:"guest_agent"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	PowerState string `json:"power_state"`
	Status     string `json:"status"`
}

// MediaRequest is the body of POST /v1/media.
type MediaRequest struct {
	Image string `json:"image"`
}

// ReturnResponse wraps a successful command result the way QMP does.
type ReturnResponse struct {
	Return any `json:"return"`
}

// ErrorResponse wraps a failure the way QMP does.
type ErrorResponse struct {
	Error qapi.Error `json:"error"`
}

// Error classes produced by the bridge itself rather than the peer.
const (
	ClassBadRequest  qapi.ErrorClass = "BadRequest"
	ClassBridgeError qapi.ErrorClass = "BridgeError"
	ClassNoAgent     qapi.ErrorClass = "NoGuestAgent"
)
