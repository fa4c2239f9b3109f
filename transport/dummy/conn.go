// Package dummy provides in-memory connections for tests.
package dummy

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

var (
	RemoteAddr = &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 54321}
	LocalAddr  = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
)

// Conn returns pre-defined pieces of data on reads, one piece per read, and records
// everything written. After the data is exhausted, reads fail with io.EOF, or time out
// if set so.
type Conn struct {
	mu       sync.Mutex
	data     [][]byte
	pending  []byte
	written  []byte
	timeout  bool
	closed   bool
	loop     bool
	pointer  int
	deadline time.Time
}

func NewConn(data ...[]byte) *Conn {
	return &Conn{data: data}
}

// Timeout makes reads of exhausted connection fail with the deadline exceeding instead
// of the io.EOF.
func (c *Conn) Timeout() *Conn {
	c.timeout = true
	return c
}

// LoopReads starts returning the data from the beginning once it's exhausted.
func (c *Conn) LoopReads() *Conn {
	c.loop = true
	return c
}

func (c *Conn) Read(b []byte) (n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}

	if len(c.pending) == 0 {
		if c.pointer >= len(c.data) {
			if !c.loop || len(c.data) == 0 {
				if c.timeout {
					return 0, &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}
				}

				return 0, io.EOF
			}

			c.pointer = 0
		}

		c.pending = c.data[c.pointer]
		c.pointer++
	}

	n = copy(b, c.pending)
	c.pending = c.pending[n:]

	return n, nil
}

func (c *Conn) Write(b []byte) (n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}

	c.written = append(c.written, b...)
	return len(b), nil
}

// Written returns everything written into the connection so far.
func (c *Conn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return string(c.written)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Conn) LocalAddr() net.Addr {
	return LocalAddr
}

func (c *Conn) RemoteAddr() net.Addr {
	return RemoteAddr
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()

	return nil
}

// ReadDeadline returns the last deadline set for reads.
func (c *Conn) ReadDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deadline
}

func (c *Conn) SetWriteDeadline(time.Time) error {
	return nil
}
