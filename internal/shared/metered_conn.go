package shared

import (
	"net"
	"sync/atomic"
)

// MeteredConn is a net.Conn wrapper that counts the bytes moving in each
// direction, so a finished round trip can be reported precisely.
type MeteredConn struct {
	net.Conn
	sent     atomic.Uint64
	received atomic.Uint64
}

// NewMeteredConn wraps conn with fresh counters.
func NewMeteredConn(conn net.Conn) *MeteredConn {
	return &MeteredConn{Conn: conn}
}

// Read reads from the underlying connection and counts the received bytes.
func (c *MeteredConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.received.Add(uint64(n))
	}
	return n, err
}

// Write writes to the underlying connection and counts the sent bytes.
func (c *MeteredConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.sent.Add(uint64(n))
	}
	return n, err
}

// BytesSent returns the total bytes written so far.
func (c *MeteredConn) BytesSent() uint64 {
	return c.sent.Load()
}

// BytesReceived returns the total bytes read so far.
func (c *MeteredConn) BytesReceived() uint64 {
	return c.received.Load()
}
