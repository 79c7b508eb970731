// Package transport dials and owns the TCP connection to the remote
// host. Where the teacher's network client runs dedicated read/write
// goroutines feeding channels, §5's single-threaded cooperative model
// has no background threads at all: Conn exposes bounded, synchronous
// reads and writes that the session loop polls directly, the same
// shape the teacher uses for dialing and keepalive configuration.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Stats mirrors the counters the teacher's client tracks, trimmed to
// what a synchronous connection can report without its own goroutines.
type Stats struct {
	Connected    bool
	BytesRead    uint64
	BytesWritten uint64
	LastReadTime time.Time
}

// Conn is a dialed TCP connection with deadline-driven, non-blocking-
// shaped reads and writes, satisfying kermit.Socket directly.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	lastReadNano atomic.Int64
}

// Dial connects to address, enabling TCP keepalive the way the
// teacher's TCPClient.Connect does.
func Dial(ctx context.Context, address string) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	if tcpConn, ok := raw.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}
	return &Conn{conn: raw, r: bufio.NewReaderSize(raw, 4096)}, nil
}

// ReadTimeout reads whatever is available within timeoutMillis,
// returning (nil, nil) on timeout rather than an error, matching
// kermit.Socket's contract.
func (c *Conn) ReadTimeout(timeoutMillis int) ([]byte, error) {
	if timeoutMillis <= 0 {
		timeoutMillis = 1
	}
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(timeoutMillis) * time.Millisecond))
	buf := make([]byte, 4096)
	n, err := c.r.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, fmt.Errorf("transport: read: %w", err)
	}
	c.bytesRead.Add(uint64(n))
	c.lastReadNano.Store(time.Now().UnixNano())
	return buf[:n], nil
}

// Write writes buf in full.
func (c *Conn) Write(buf []byte) error {
	n, err := c.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	c.bytesWritten.Add(uint64(n))
	return nil
}

// Ready reports whether a read would return data immediately. Uses
// Peek so the probe byte is never consumed — a subsequent ReadTimeout
// still sees it.
func (c *Conn) Ready() (bool, error) {
	if c.r.Buffered() > 0 {
		return true, nil
	}
	c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	_, err := c.r.Peek(1)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, fmt.Errorf("transport: peek: %w", err)
	}
	return true, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// Stats reports the connection's byte counters.
func (c *Conn) Stats() Stats {
	last := c.lastReadNano.Load()
	var lastRead time.Time
	if last != 0 {
		lastRead = time.Unix(0, last)
	}
	return Stats{
		Connected:    true,
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
		LastReadTime: lastRead,
	}
}
