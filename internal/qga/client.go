package qga

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/tjst-t/qemu-qapi/internal/qapi"
)

// ErrNotConnected is returned when a command is issued on a disconnected client.
var ErrNotConnected = errors.New("guest agent client not connected")

// Client is the interface for guest agent communication
type Client interface {
	Ping() error
	Info() (Info, error)
	HostName() (string, error)
	Execute(cmd qapi.Command, result any) error
	Close() error
}

type qgaClient struct {
	conn      net.Conn
	session   *Session
	connected bool
	mu        sync.Mutex
}

// NewClient connects to the guest agent socket and synchronizes the session.
func NewClient(socketPath string, opts ...qapi.Option) (Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to guest agent socket: %w", err)
	}

	session := New(conn, opts...)
	if err := session.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("guest agent handshake: %w", err)
	}

	return &qgaClient{
		conn:      conn,
		session:   session,
		connected: true,
	}, nil
}

func (c *qgaClient) Execute(cmd qapi.Command, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	err := c.session.Execute(cmd, result)
	if err != nil && c.session.State() == StateBroken {
		c.connected = false
	}
	return err
}

func (c *qgaClient) Ping() error {
	return c.Execute(GuestPing{}, nil)
}

func (c *qgaClient) Info() (Info, error) {
	return qapi.Execute[Info](c, GuestInfo{})
}

func (c *qgaClient) HostName() (string, error) {
	name, err := qapi.Execute[HostName](c, GuestGetHostName{})
	if err != nil {
		return "", err
	}
	return name.HostName, nil
}

func (c *qgaClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
