package qmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

func TestCommands_WireNames(t *testing.T) {
	tests := []struct {
		cmd  qapi.Command
		name string
		args string
	}{
		{QMPCapabilities{}, "qmp_capabilities", ""},
		{QMPCapabilities{Enable: []CapabilityFlag{CapabilityOOB}}, "qmp_capabilities", `{"enable":["oob"]}`},
		{QueryVersion{}, "query-version", ""},
		{QueryStatus{}, "query-status", ""},
		{Stop{}, "stop", ""},
		{Cont{}, "cont", ""},
		{SystemReset{}, "system_reset", ""},
		{SystemPowerdown{}, "system_powerdown", ""},
		{Quit{}, "quit", ""},
		{BlockdevChangeMedium{Device: "ide0-cd0", Filename: "/img.iso"}, "blockdev-change-medium", `{"device":"ide0-cd0","filename":"/img.iso"}`},
		{BlockdevRemoveMedium{ID: "cd0"}, "blockdev-remove-medium", `{"id":"cd0"}`},
		{DeviceDel{ID: "net0"}, "device_del", `{"id":"net0"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := qapi.EncodeCommand(tt.cmd)
			require.NoError(t, err)

			want := `{"execute":"` + tt.name + `"}`
			if tt.args != "" {
				want = `{"execute":"` + tt.name + `","arguments":` + tt.args + `}`
			}
			assert.JSONEq(t, want, string(line))
		})
	}
}

func TestDeviceAdd_FlattensProps(t *testing.T) {
	cmd := DeviceAdd{
		Driver: "virtio-net-pci",
		ID:     "net1",
		Props:  map[string]any{"netdev": "hostnet1", "mac": "52:54:00:12:34:56"},
	}

	line, err := qapi.EncodeCommand(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"execute":"device_add","arguments":{"driver":"virtio-net-pci","id":"net1","netdev":"hostnet1","mac":"52:54:00:12:34:56"}}`, string(line))
}

func TestDeviceAdd_NamedFieldsWinOverProps(t *testing.T) {
	cmd := DeviceAdd{Driver: "usb-tablet", Bus: "usb.0", Props: map[string]any{"driver": "ignored"}}

	line, err := qapi.EncodeCommand(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"execute":"device_add","arguments":{"driver":"usb-tablet","bus":"usb.0"}}`, string(line))
}
