package qmp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilities_IgnoresUnknownEntries(t *testing.T) {
	raw := `{"version":{"qemu":{"major":9,"minor":1,"micro":2},"package":""},` +
		`"capabilities":["oob","future-cap",{"name":"structured"},42]}`

	var caps Capabilities
	require.NoError(t, json.Unmarshal([]byte(raw), &caps))

	assert.Len(t, caps.Capabilities, 4)
	assert.True(t, caps.SupportsOOB())
	assert.Equal(t, []CapabilityFlag{CapabilityOOB}, caps.Flags())
}

func TestCapabilities_NoOOB(t *testing.T) {
	caps := Capabilities{Capabilities: []Capability{{raw: json.RawMessage(`"future-cap"`)}}}
	assert.False(t, caps.SupportsOOB())
	assert.Empty(t, caps.Flags())
}

func TestCapability_MarshalKeepsOriginal(t *testing.T) {
	raw := `{"version":{"qemu":{"major":8,"minor":2,"micro":0},"package":"x"},"capabilities":["oob",{"name":"structured"}]}`

	var caps Capabilities
	require.NoError(t, json.Unmarshal([]byte(raw), &caps))

	out, err := json.Marshal(caps)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestNewCapability(t *testing.T) {
	c := NewCapability(CapabilityOOB)
	flag, ok := c.Flag()
	assert.True(t, ok)
	assert.Equal(t, CapabilityOOB, flag)

	var zero Capability
	_, ok = zero.Flag()
	assert.False(t, ok)
	out, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
