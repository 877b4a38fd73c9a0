package qmp

import (
	"bytes"
	"encoding/json"
)

// VersionTriple is a QEMU major.minor.micro version.
type VersionTriple struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Micro int `json:"micro"`
}

// VersionInfo describes the QEMU build on the other end.
type VersionInfo struct {
	QEMU    VersionTriple `json:"qemu"`
	Package string        `json:"package"`
}

// CapabilityFlag is a QMP capability understood by this package.
type CapabilityFlag string

// CapabilityOOB advertises out-of-band command execution.
const CapabilityOOB CapabilityFlag = "oob"

// Capability is one entry of the greeting's capability list. Entries are
// kept verbatim so that capabilities added by newer QEMU releases still
// decode.
type Capability struct {
	raw json.RawMessage
}

// NewCapability returns the capability entry for flag.
func NewCapability(flag CapabilityFlag) Capability {
	raw, _ := json.Marshal(string(flag))
	return Capability{raw: raw}
}

func (c *Capability) UnmarshalJSON(data []byte) error {
	c.raw = bytes.Clone(data)
	return nil
}

func (c Capability) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// Flag returns the recognized flag for this entry.
func (c Capability) Flag() (CapabilityFlag, bool) {
	var name string
	if err := json.Unmarshal(c.raw, &name); err != nil {
		return "", false
	}
	switch flag := CapabilityFlag(name); flag {
	case CapabilityOOB:
		return flag, true
	default:
		return "", false
	}
}

// Capabilities is the payload of the QMP greeting.
type Capabilities struct {
	Version      VersionInfo  `json:"version"`
	Capabilities []Capability `json:"capabilities"`
}

// Greeting is the first message a QMP peer sends.
type Greeting struct {
	QMP Capabilities `json:"QMP"`
}

// SupportsOOB reports whether the peer advertised out-of-band execution.
func (c *Capabilities) SupportsOOB() bool {
	for _, capability := range c.Capabilities {
		if flag, ok := capability.Flag(); ok && flag == CapabilityOOB {
			return true
		}
	}
	return false
}

// Flags lists the recognized capabilities, skipping unknown entries.
func (c *Capabilities) Flags() []CapabilityFlag {
	var flags []CapabilityFlag
	for _, capability := range c.Capabilities {
		if flag, ok := capability.Flag(); ok {
			flags = append(flags, flag)
		}
	}
	return flags
}
