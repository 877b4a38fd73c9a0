package qmp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// ErrNotConnected is returned when a command is issued on a disconnected client.
var ErrNotConnected = errors.New("QMP client not connected")

// qmpClient implements the Client interface
type qmpClient struct {
	socketPath string
	opts       []qapi.Option
	conn       net.Conn
	session    *Session
	caps       *Capabilities
	connected  bool
	mu         sync.Mutex
}

// NewClient creates a new QMP client connected to the given UNIX socket
func NewClient(socketPath string, opts ...qapi.Option) (Client, error) {
	c := NewDisconnectedClient(socketPath, opts...)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewDisconnectedClient creates a QMP client that is not yet connected.
// Call Connect() to establish the connection.
func NewDisconnectedClient(socketPath string, opts ...qapi.Option) Client {
	return &qmpClient{
		socketPath: socketPath,
		opts:       opts,
	}
}

// Connect establishes (or re-establishes) the QMP connection.
func (c *qmpClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()

	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("connecting to QMP socket: %w", err)
	}

	session := New(conn, c.opts...)
	caps, err := session.Handshake()
	if err != nil {
		conn.Close()
		return fmt.Errorf("QMP handshake: %w", err)
	}

	c.conn = conn
	c.session = session
	c.caps = caps
	c.connected = true
	return nil
}

func (c *qmpClient) closeLocked() error {
	c.connected = false
	c.session = nil
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// executeLocked runs one command. Caller must hold c.mu.
func (c *qmpClient) executeLocked(cmd qapi.Command, result any) error {
	if !c.connected {
		return ErrNotConnected
	}

	err := c.session.Execute(cmd, result)
	if err != nil && c.session.State() == StateBroken {
		// Keep queued events reachable until the caller reconnects.
		c.connected = false
	}
	return err
}

func (c *qmpClient) Execute(cmd qapi.Command, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeLocked(cmd, result)
}

func (c *qmpClient) Events() []qapi.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	return c.session.Events()
}

func (c *qmpClient) Poll() ([]qapi.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.executeLocked(QueryVersion{}, nil); err != nil {
		return nil, err
	}
	return c.session.Events(), nil
}

func (c *qmpClient) Capabilities() *Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

func (c *qmpClient) QueryStatus() (Status, error) {
	info, err := qapi.Execute[StatusInfo](c, QueryStatus{})
	if err != nil {
		return "", err
	}
	return info.Status, nil
}

func (c *qmpClient) SystemPowerdown() error {
	return c.Execute(SystemPowerdown{}, nil)
}

func (c *qmpClient) SystemReset() error {
	return c.Execute(SystemReset{}, nil)
}

func (c *qmpClient) Stop() error {
	return c.Execute(Stop{}, nil)
}

func (c *qmpClient) Cont() error {
	return c.Execute(Cont{}, nil)
}

func (c *qmpClient) Quit() error {
	return c.Execute(Quit{}, nil)
}

func (c *qmpClient) BlockdevChangeMedium(device, filename string) error {
	return c.Execute(BlockdevChangeMedium{
		Device:   device,
		Filename: filename,
	}, nil)
}

func (c *qmpClient) BlockdevRemoveMedium(device string) error {
	return c.Execute(BlockdevRemoveMedium{
		Device: device,
	}, nil)
}

func (c *qmpClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}
