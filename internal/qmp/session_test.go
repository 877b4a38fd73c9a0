package qmp

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

const (
	greeting42  = `{"QMP":{"version":{"qemu":{"major":4,"minor":2,"micro":0},"package":""},"capabilities":[]}}` + "\n"
	greetingOOB = `{"QMP":{"version":{"qemu":{"micro":0,"minor":2,"major":8},"package":"v8.2.0"},"capabilities":["oob"]}}` + "\n"
	ack         = `{"return":{}}` + "\n"
)

// answer is a command returning an integer.
type answer struct{}

func (answer) CommandName() string { return "query-answer" }

func newTestSession(lines ...string) (*Session, *bytes.Buffer) {
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, ""))
	return NewSession(qapi.NewStream(in, &out)), &out
}

func sentCommands(t *testing.T, out *bytes.Buffer) []qapi.CommandEnvelope {
	t.Helper()
	var cmds []qapi.CommandEnvelope
	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var cmd qapi.CommandEnvelope
		require.NoError(t, json.Unmarshal([]byte(line), &cmd))
		cmds = append(cmds, cmd)
	}
	return cmds
}

func TestHandshake_QEMU42Greeting(t *testing.T) {
	s, out := newTestSession(greeting42, ack)

	caps, err := s.Handshake()
	require.NoError(t, err)
	assert.Empty(t, caps.Capabilities)
	assert.Empty(t, caps.Flags())
	assert.False(t, caps.SupportsOOB())
	assert.Equal(t, VersionTriple{Major: 4, Minor: 2, Micro: 0}, caps.Version.QEMU)
	assert.Equal(t, StateNegotiated, s.State())

	assert.Equal(t, `{"execute":"qmp_capabilities"}`+"\n", out.String())
}

func TestHandshake_ReturnsGreetingUnchanged(t *testing.T) {
	s, _ := newTestSession(greetingOOB, ack)

	caps, err := s.Handshake()
	require.NoError(t, err)

	var want Greeting
	require.NoError(t, json.Unmarshal([]byte(greetingOOB), &want))
	assert.Equal(t, &want.QMP, caps)
	assert.True(t, caps.SupportsOOB())
	assert.Equal(t, []CapabilityFlag{CapabilityOOB}, caps.Flags())
}

func TestHandshake_ResponseFirstIsProtocolViolation(t *testing.T) {
	s, out := newTestSession(ack, ack)

	caps, err := s.Handshake()
	assert.Nil(t, caps)
	assert.ErrorIs(t, err, qapi.ErrInvalidData)
	assert.Equal(t, StateBroken, s.State())
	assert.Empty(t, out.String(), "no command may be sent before the greeting")
}

func TestHandshake_EventFirstIsProtocolViolation(t *testing.T) {
	s, _ := newTestSession(`{"event":"STOP","timestamp":{"seconds":1,"microseconds":0}}` + "\n")

	_, err := s.Handshake()
	assert.ErrorIs(t, err, qapi.ErrInvalidData)
}

func TestHandshake_EOFBeforeGreeting(t *testing.T) {
	s, _ := newTestSession()

	_, err := s.Handshake()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, StateBroken, s.State())
}

func TestHandshake_GarbledGreeting(t *testing.T) {
	s, _ := newTestSession("{\"QMP\": {\n")

	_, err := s.Handshake()
	var decodeErr *qapi.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestHandshake_CapabilitiesRejected(t *testing.T) {
	s, _ := newTestSession(greeting42, `{"error":{"class":"CommandNotFound","desc":"Capabilities negotiation is already complete"}}`+"\n")

	_, err := s.Handshake()
	require.Error(t, err)
	assert.True(t, qapi.IsRemote(err))
	assert.Equal(t, StateBroken, s.State())

	assert.ErrorIs(t, s.Nop(), qapi.ErrBroken)
}

func TestHandshake_EventsDuringNegotiationAreQueued(t *testing.T) {
	s, _ := newTestSession(greeting42,
		`{"event":"RESUME","timestamp":{"seconds":5,"microseconds":1}}`+"\n",
		ack)

	_, err := s.Handshake()
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "RESUME", events[0].Name)
}

func TestReadCapabilities_Twice(t *testing.T) {
	s, _ := newTestSession(greeting42, greeting42)

	_, err := s.ReadCapabilities()
	require.NoError(t, err)
	_, err = s.ReadCapabilities()
	assert.ErrorIs(t, err, qapi.ErrInvalidData)
}

func TestExecute_BeforeGreeting(t *testing.T) {
	s, out := newTestSession(ack)

	err := s.Execute(QueryStatus{}, nil)
	assert.ErrorIs(t, err, qapi.ErrNotReady)
	assert.Empty(t, out.String())
}

func TestExecute_ReturnsDecodedResult(t *testing.T) {
	s, out := newTestSession(greeting42, ack, `{"return":{"running":true,"status":"running"}}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	info, err := qapi.Execute[StatusInfo](s, QueryStatus{})
	require.NoError(t, err)
	assert.Equal(t, StatusInfo{Running: true, Status: StatusRunning}, info)
	assert.Empty(t, s.Events())

	cmds := sentCommands(t, out)
	require.Len(t, cmds, 2)
	assert.Equal(t, "query-status", cmds[1].Execute)
	assert.Nil(t, cmds[1].Arguments)
}

func TestExecute_EventThenResponse(t *testing.T) {
	s, _ := newTestSession(greeting42, ack,
		`{"event":"SHUTDOWN","data":{},"timestamp":{"seconds":1,"microseconds":0}}`+"\n",
		`{"return":42}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	got, err := qapi.Execute[int](s, answer{})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventShutdown, events[0].Name)
	assert.Equal(t, int64(1), events[0].Timestamp.Seconds)
	assert.Empty(t, s.Events())
}

func TestExecute_EventsKeepArrivalOrder(t *testing.T) {
	names := []string{"STOP", "RESUME", "RESET", "STOP", "SHUTDOWN"}
	lines := []string{greeting42, ack}
	for i, name := range names {
		lines = append(lines, `{"event":"`+name+`","data":{"n":`+string(rune('0'+i))+`},"timestamp":{"seconds":1,"microseconds":0}}`+"\n")
		if i == 1 {
			lines = append(lines, ack)
		}
	}
	lines = append(lines, ack)
	s, _ := newTestSession(lines...)
	_, err := s.Handshake()
	require.NoError(t, err)

	require.NoError(t, s.Execute(Stop{}, nil))
	assert.Equal(t, 2, s.PendingEvents())
	require.NoError(t, s.Execute(Cont{}, nil))

	events := s.Events()
	require.Len(t, events, len(names))
	for i, event := range events {
		assert.Equal(t, names[i], event.Name)
		var data struct {
			N int `json:"n"`
		}
		require.NoError(t, event.DecodeData(&data))
		assert.Equal(t, i, data.N)
	}
	assert.Empty(t, s.Events())
	assert.Zero(t, s.PendingEvents())
}

func TestExecute_RemoteErrorKeepsSessionUsable(t *testing.T) {
	s, _ := newTestSession(greeting42, ack,
		`{"error":{"class":"DeviceNotFound","desc":"Device 'cd9' not found"}}`+"\n",
		`{"return":{}}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	err = s.Execute(BlockdevRemoveMedium{Device: "cd9"}, nil)
	var remote *qapi.Error
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, qapi.ErrorClassDeviceNotFound, remote.Class)
	assert.Equal(t, "Device 'cd9' not found", remote.Desc)
	assert.Equal(t, StateNegotiated, s.State())

	assert.NoError(t, s.Execute(Cont{}, nil))
}

func TestExecute_EOFWhileAwaitingResponse(t *testing.T) {
	s, _ := newTestSession(greeting42, ack)
	_, err := s.Handshake()
	require.NoError(t, err)

	got, err := qapi.Execute[int](s, answer{})
	assert.ErrorIs(t, err, qapi.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Zero(t, got)
	assert.Equal(t, StateBroken, s.State())

	assert.ErrorIs(t, s.Execute(answer{}, nil), qapi.ErrBroken)
}

func TestExecute_EventsBeforeEOFAreKept(t *testing.T) {
	s, _ := newTestSession(greeting42, ack,
		`{"event":"SHUTDOWN","data":{"guest":true,"reason":"guest-shutdown"},"timestamp":{"seconds":1,"microseconds":0}}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	err = s.Execute(Quit{}, nil)
	assert.ErrorIs(t, err, qapi.ErrUnexpectedEOF)

	events := s.Events()
	require.Len(t, events, 1)
	var data ShutdownEvent
	require.NoError(t, events[0].DecodeData(&data))
	assert.Equal(t, ShutdownEvent{Guest: true, Reason: "guest-shutdown"}, data)
}

func TestExecute_GreetingMidSession(t *testing.T) {
	s, _ := newTestSession(greeting42, ack, greeting42)
	_, err := s.Handshake()
	require.NoError(t, err)

	err = s.Execute(QueryStatus{}, nil)
	assert.ErrorIs(t, err, qapi.ErrInvalidData)
	assert.Equal(t, StateBroken, s.State())
}

func TestExecute_UnrecognizedMessage(t *testing.T) {
	s, _ := newTestSession(greeting42, ack, `{"something":"else"}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	err = s.Execute(QueryStatus{}, nil)
	assert.ErrorIs(t, err, qapi.ErrInvalidData)
}

func TestExecute_GarbledResponse(t *testing.T) {
	s, _ := newTestSession(greeting42, ack, "{\"return\": {\"running\"\n", ack)
	_, err := s.Handshake()
	require.NoError(t, err)

	err = s.Execute(QueryStatus{}, nil)
	var decodeErr *qapi.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, StateBroken, s.State())
}

func TestNop_CollectsPendingEvents(t *testing.T) {
	s, out := newTestSession(greeting42, ack,
		`{"event":"POWERDOWN","timestamp":{"seconds":3,"microseconds":0}}`+"\n",
		`{"return":{"qemu":{"major":4,"minor":2,"micro":0},"package":""}}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	require.NoError(t, s.Nop())

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventPowerdown, events[0].Name)
	assert.Nil(t, events[0].Data)

	cmds := sentCommands(t, out)
	assert.Equal(t, "query-version", cmds[len(cmds)-1].Execute)
}

func TestWriteCommandReadResponse_Split(t *testing.T) {
	s, out := newTestSession(greeting42, ack, `{"return":{},"id":"abc"}`+"\n")
	_, err := s.Handshake()
	require.NoError(t, err)

	require.NoError(t, s.WriteCommand(DeviceDel{ID: "net0"}))
	resp, err := s.ReadResponse()
	require.NoError(t, err)
	assert.JSONEq(t, `"abc"`, string(resp.ID))
	assert.Nil(t, resp.Error)

	cmds := sentCommands(t, out)
	assert.JSONEq(t, `{"id":"net0"}`, string(cmds[len(cmds)-1].Arguments))
}

func TestStream_ReturnsOwnership(t *testing.T) {
	var out bytes.Buffer
	stream := qapi.NewStream(strings.NewReader(""), &out)
	s := NewSession(stream)
	assert.Same(t, stream, s.Stream())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "greeted", StateGreeted.String())
	assert.Equal(t, "negotiated", StateNegotiated.String())
	assert.Equal(t, "broken", StateBroken.String())
	assert.Equal(t, "State(9)", State(9).String())
}
