// Package mllp implements the minimal lower layer protocol used to carry
// interchange messages over TCP: each message is framed between a start
// block byte and an end block byte followed by a carriage return.
package mllp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Frame bytes
const (
	startBlock     = 0x0b
	endBlock       = 0x1c
	carriageReturn = 0x0d
)

// Config holds connection settings for one counterpart listener
type Config struct {
	Addr    string // host:port
	Timeout time.Duration
}

// Client is a single MLLP connection. Send is synchronous: one framed
// message out, one framed acknowledgment back.
type Client struct {
	conn        net.Conn
	addr        string
	timeout     time.Duration
	mu          sync.Mutex
	isConnected bool
	lastUsed    time.Time
}

// NewClient creates a new MLLP client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		addr:    config.Addr,
		timeout: config.Timeout,
	}
}

// Connect establishes the TCP connection
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isConnected {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}

	c.conn = conn
	c.isConnected = true
	c.lastUsed = time.Now()
	return nil
}

// Send frames and writes the message, then blocks for the framed reply.
// The deadline covers both directions; a timeout maps to an error so the
// caller can treat it as a transport failure.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected {
		return "", fmt.Errorf("not connected")
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := writeFrame(c.conn, message); err != nil {
		c.markBroken()
		return "", fmt.Errorf("failed to write frame: %w", err)
	}

	reply, err := readFrame(bufio.NewReader(c.conn))
	if err != nil {
		c.markBroken()
		return "", fmt.Errorf("failed to read reply: %w", err)
	}

	c.lastUsed = time.Now()
	return reply, nil
}

// IsConnected reports whether the connection is usable
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// GetLastUsed returns the time of the last successful exchange
func (c *Client) GetLastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected {
		return nil
	}
	c.isConnected = false
	return c.conn.Close()
}

func (c *Client) markBroken() {
	c.isConnected = false
	c.conn.Close()
}

func writeFrame(conn net.Conn, message string) error {
	var buf bytes.Buffer
	buf.WriteByte(startBlock)
	buf.WriteString(message)
	buf.WriteByte(endBlock)
	buf.WriteByte(carriageReturn)

	_, err := conn.Write(buf.Bytes())
	return err
}

func readFrame(r *bufio.Reader) (string, error) {
	// Skip to the start block; some senders pad frames with stray bytes
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == startBlock {
			break
		}
	}

	payload, err := r.ReadBytes(endBlock)
	if err != nil {
		return "", err
	}
	payload = payload[:len(payload)-1]

	// Trailing carriage return after the end block
	if b, err := r.ReadByte(); err == nil && b != carriageReturn {
		return "", fmt.Errorf("malformed frame trailer 0x%02x", b)
	}

	return string(payload), nil
}
