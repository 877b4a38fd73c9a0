package qga

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjst-t/qemu-qapi/internal/qapi"
	"github.com/tjst-t/qemu-qapi/internal/qapitest"
)

func newMockQGAServer(t *testing.T) (*qapitest.Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "qga.sock")
	srv, err := qapitest.NewQGAServer(socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv, socketPath
}

func TestClient_Ping(t *testing.T) {
	mockQGA, socketPath := newMockQGAServer(t)

	client, err := NewClient(socketPath)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping())
	assert.Equal(t, "guest-ping", mockQGA.LastCommand())

	cmds := mockQGA.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "guest-sync", cmds[0].Execute)
}

func TestClient_Info(t *testing.T) {
	_, socketPath := newMockQGAServer(t)

	client, err := NewClient(socketPath)
	require.NoError(t, err)
	defer client.Close()

	info, err := client.Info()
	require.NoError(t, err)
	assert.Equal(t, "8.2.0", info.Version)
	assert.NotEmpty(t, info.SupportedCommands)
	assert.Equal(t, "guest-sync", info.SupportedCommands[0].Name)
}

func TestClient_HostName(t *testing.T) {
	_, socketPath := newMockQGAServer(t)

	client, err := NewClient(socketPath)
	require.NoError(t, err)
	defer client.Close()

	name, err := client.HostName()
	require.NoError(t, err)
	assert.Equal(t, qapitest.HostName, name)
}

func TestClient_StaleSyncFailsHandshake(t *testing.T) {
	mockQGA, socketPath := newMockQGAServer(t)
	mockQGA.Handle("guest-sync", func(json.RawMessage) (any, error) { return 1, nil })

	_, err := NewClient(socketPath)
	assert.ErrorIs(t, err, qapi.ErrInvalidData)
}

func TestClient_ClosedClient(t *testing.T) {
	_, socketPath := newMockQGAServer(t)

	client, err := NewClient(socketPath)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.ErrorIs(t, client.Ping(), ErrNotConnected)
}
