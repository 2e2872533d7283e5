// Package connection implements per-connection state and the
// ConnectionTable that owns it. Exactly one component holds write access
// to a Connection at a time, and handoff between the reactor and a worker
// is explicit via the busy flag.
package connection

import (
	"sync/atomic"
	"time"

	"github.com/s00inx/reactorweb/internal/buffer"
	"github.com/s00inx/reactorweb/internal/content"
	"github.com/s00inx/reactorweb/internal/httpproto"
)

// ID is the connection identifier shared across the reactor, the timer
// heap, and the connection table — in this implementation, the accepted
// socket's file descriptor.
type ID int

// Connection holds all per-connection state. Fields are only safe to touch
// under the busy-flag protocol: the reactor thread owns it except during
// the one worker task that has claimed it by setting Busy.
type Connection struct {
	ID         ID
	Fd         int
	PeerAddr   string
	ReadBuf    *buffer.ByteBuffer
	WriteBuf   *buffer.ByteBuffer
	Parser     *httpproto.Parser
	KeepAlive  bool

	// Pending is the response awaiting drain through WriteBuf/external
	// body once a worker has produced it. WriteOffset tracks how much of
	// WriteBuf+Pending.Body.External has been written so far, to tolerate
	// partial writev's across multiple writable events.
	Pending     *content.Resolved
	WriteOffset int

	// Busy is set by the reactor before submitting a worker task for this
	// connection and cleared by the worker on completion. The reactor
	// checks it before dispatching another read and the timer checks it
	// before evicting.
	Busy atomic.Bool

	LastActivity time.Time
}

// NewConnection allocates per-connection state for a freshly accepted
// socket.
func NewConnection(id ID, fd int, peerAddr string, maxBodyBytes int) *Connection {
	return &Connection{
		ID:        id,
		Fd:        fd,
		PeerAddr:  peerAddr,
		ReadBuf:   buffer.New(),
		WriteBuf:  buffer.New(),
		Parser:    httpproto.New(maxBodyBytes),
		KeepAlive: true,
	}
}

// ResetForNextRequest clears per-request state while keeping the
// connection and its buffers alive, for the keep-alive path.
func (c *Connection) ResetForNextRequest() {
	if c.Pending != nil && c.Pending.Release != nil {
		c.Pending.Release()
	}
	c.Pending = nil
	c.WriteOffset = 0
	c.Parser.Reset()
	c.WriteBuf.Reset()
}

// ReleasePending releases any mmap'd response body without resetting the
// parser; used on close.
func (c *Connection) ReleasePending() {
	if c.Pending != nil && c.Pending.Release != nil {
		c.Pending.Release()
		c.Pending = nil
	}
}
