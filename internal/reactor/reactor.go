// Package reactor implements the single-threaded readiness multiplexer
// that drives accept/read/write/close dispatch and the timer tick: a
// dedicated worker pool rather than epoll-bound workers, explicit
// busy-flag handoff between the reactor and a worker, and close routed
// only through this goroutine.
package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/s00inx/reactorweb/internal/connection"
	"github.com/s00inx/reactorweb/internal/content"
	"github.com/s00inx/reactorweb/internal/httpproto"
	"github.com/s00inx/reactorweb/internal/timer"
	"github.com/s00inx/reactorweb/internal/workerpool"
)

const maxEpollEvents = 128

// TrigMode selects edge- vs level-triggered readiness for the listener and
// for connection sockets.
type TrigMode int

const (
	TrigLevelLevel TrigMode = 0 // listener level, connection level
	TrigLevelEdge  TrigMode = 1 // listener level, connection edge
	TrigEdgeLevel  TrigMode = 2 // listener edge, connection level
	TrigEdgeEdge   TrigMode = 3 // listener edge, connection edge
)

func (m TrigMode) listenerEdge() bool   { return m == TrigEdgeLevel || m == TrigEdgeEdge }
func (m TrigMode) connectionEdge() bool { return m == TrigLevelEdge || m == TrigEdgeEdge }

// ErrorLogger is the leveled logging collaborator the reactor reports
// accept/read/write/timeout events through.
type ErrorLogger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// ResponseSource resolves a request path to a status, content type, and
// body, independent of how that body is stored or produced.
type ResponseSource interface {
	Resolve(reqPath []byte, overrideCode httpproto.StatusCode) content.Resolved
}

// Config is the subset of the process configuration this component
// consumes directly.
type Config struct {
	Addr         [4]byte
	Port         int
	TrigMode     TrigMode
	TimeoutMS    int
	OptLinger    bool
	ThreadNum    int
	MaxBodyBytes int
	GracePeriod  time.Duration // re-arm interval used when a timer fires on a busy connection
}

type completion struct {
	id    connection.ID
	event completionKind
}

type completionKind int

const (
	rearmRead completionKind = iota
	rearmWrite
	forceClose
)

// Reactor owns the epoll instance, the connection table, the timer heap,
// and the worker pool, and runs the single event loop that serializes all
// access to them.
type Reactor struct {
	cfg    Config
	table  *connection.Table
	timer  *timer.Heap
	pool   *workerpool.Pool
	source ResponseSource
	log    ErrorLogger

	epfd     int
	listenFd int
	wakeFd   int

	completions chan completion
	stop        chan struct{}
	stopped     chan struct{}
}

// New wires a Reactor over an already-bound Config, a ResponseSource, and
// a Logger. The worker pool is constructed here so the facade does not
// need to know the reactor's internal concurrency shape.
func New(cfg Config, source ResponseSource, log ErrorLogger) *Reactor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 2 * time.Second
	}
	r := &Reactor{
		cfg:         cfg,
		table:       connection.NewTable(),
		source:      source,
		log:         log,
		epfd:        -1,
		listenFd:    -1,
		wakeFd:      -1,
		completions: make(chan completion, 4096),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	r.timer = timer.New(log)
	r.pool = workerpool.New(cfg.ThreadNum, 4096)
	return r
}

// Run binds the listener and drives the event loop until Stop is called.
// It blocks until the loop exits.
func (r *Reactor) Run() error {
	fd, err := r.listen()
	if err != nil {
		return err
	}
	r.listenFd = fd
	defer unix.Close(r.listenFd)

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	r.epfd = epfd
	defer unix.Close(r.epfd)

	listenEvents := uint32(unix.EPOLLIN)
	if r.cfg.TrigMode.listenerEdge() {
		listenEvents |= unix.EPOLLET
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, r.listenFd, &unix.EpollEvent{Events: listenEvents, Fd: int32(r.listenFd)}); err != nil {
		return fmt.Errorf("reactor: register listener: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("reactor: eventfd: %w", err)
	}
	r.wakeFd = wakeFd
	defer unix.Close(r.wakeFd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, r.wakeFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.wakeFd)}); err != nil {
		return fmt.Errorf("reactor: register wakeup fd: %w", err)
	}

	defer close(r.stopped)

	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		select {
		case <-r.stop:
			r.drainAndClose()
			return nil
		default:
		}

		timeoutMS := r.timer.NextTickMS()
		n, err := unix.EpollWait(r.epfd, events, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case r.listenFd:
				r.acceptLoop()
			case r.wakeFd:
				r.drainWakeup()
				r.drainCompletions()
			default:
				r.handleConnEvent(connection.ID(fd), events[i].Events)
			}
		}
	}
}

// Stop requests the event loop to exit after its current iteration. It
// blocks until the loop has joined the worker pool and closed every live
// connection.
func (r *Reactor) Stop() {
	close(r.stop)
	r.wake()
	<-r.stopped
}

// drainAndClose runs on the reactor goroutine once the stop signal is
// seen: it joins the worker pool (workers finish their current task, then
// exit once the task queue is drained and closed) before closing every
// still-live connection, so nothing touches a Connection concurrently
// with its teardown.
func (r *Reactor) drainAndClose() {
	r.pool.Shutdown()
	r.table.Each(func(conn *connection.Connection) {
		r.closeConnection(conn.ID)
	})
}

func (r *Reactor) listen() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: r.cfg.Port, Addr: r.cfg.Addr}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func (r *Reactor) acceptLoop() {
	for {
		nfd, sa, err := unix.Accept4(r.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EINTR {
				continue
			}
			r.log.Warnf("reactor: accept: %v", err)
			return
		}

		id := connection.ID(nfd)
		conn := connection.NewConnection(id, nfd, peerAddrString(sa), r.cfg.MaxBodyBytes)
		r.table.Insert(conn)

		events := uint32(unix.EPOLLIN | unix.EPOLLONESHOT)
		if r.cfg.TrigMode.connectionEdge() {
			events |= unix.EPOLLET
		}
		if r.cfg.OptLinger {
			if err := unix.SetsockoptLinger(nfd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 1}); err != nil {
				r.log.Warnf("reactor: setsockopt SO_LINGER conn %d: %v", nfd, err)
			}
		}

		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, nfd, &unix.EpollEvent{Events: events, Fd: int32(nfd)}); err != nil {
			r.log.Warnf("reactor: register conn %d: %v", nfd, err)
			r.table.Remove(id)
			unix.Close(nfd)
			continue
		}

		r.timer.Add(timer.ID(id), time.Duration(r.cfg.TimeoutMS)*time.Millisecond, r.expireCallback(id))
		r.log.Debugf("reactor: accepted conn %d from %s", nfd, conn.PeerAddr)
	}
}

func peerAddrString(sa unix.Sockaddr) string {
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return fmt.Sprintf("%d.%d.%d.%d:%d", sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3], sa4.Port)
	}
	return "unknown"
}

// expireCallback is invoked on the reactor thread by timer.Tick. If the
// connection is mid-task it re-arms for a short grace interval instead of
// closing out from under the worker that has it.
func (r *Reactor) expireCallback(id connection.ID) timer.Callback {
	return func() {
		conn, ok := r.table.Get(id)
		if !ok {
			return
		}
		if conn.Busy.Load() {
			r.timer.Add(timer.ID(id), r.cfg.GracePeriod, r.expireCallback(id))
			return
		}
		r.log.Debugf("reactor: conn %d idle timeout", id)
		r.closeConnection(id)
	}
}

func (r *Reactor) handleConnEvent(id connection.ID, events uint32) {
	conn, ok := r.table.Get(id)
	if !ok {
		return
	}

	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		r.closeConnection(id)
		return
	}

	if events&unix.EPOLLOUT != 0 && conn.Pending != nil {
		r.flushWrite(conn)
		return
	}

	if events&unix.EPOLLIN != 0 {
		r.handleReadable(conn)
	}
}

func (r *Reactor) handleReadable(conn *connection.Connection) {
	if conn.Busy.Load() {
		// A worker task is already outstanding for this connection; the
		// busy flag plus EPOLLONESHOT make this unreachable in practice,
		// but guard it explicitly so at most one task ever touches a
		// connection at a time.
		return
	}

	n, err := conn.ReadBuf.ReadFromFD(conn.Fd)
	if n == 0 && (err == nil || err != unix.EAGAIN) {
		r.closeConnection(conn.ID)
		return
	}
	if err != nil && err != unix.EAGAIN {
		r.log.Warnf("reactor: read conn %d: %v", conn.ID, err)
		r.closeConnection(conn.ID)
		return
	}
	if n <= 0 {
		r.rearmRead(conn)
		return
	}

	conn.LastActivity = time.Now()
	conn.Busy.Store(true)
	r.pool.Submit(func() { r.processConnection(conn) })
}

// processConnection runs on a worker goroutine: it advances the parser and
// produces a Response, but touches only its own borrowed Connection and
// never the ConnectionTable, epoll, or the timer heap directly — all of
// that is requested back from the reactor thread via a completion.
func (r *Reactor) processConnection(conn *connection.Connection) {
	outcome, consumed, req, code := conn.Parser.Advance(conn.ReadBuf.Peek())

	switch outcome {
	case httpproto.NeedMore:
		conn.Busy.Store(false)
		r.postCompletion(conn.ID, rearmRead)
		return

	case httpproto.Errored:
		resolved := r.source.Resolve(nil, code)
		r.buildResponse(conn, resolved, false)
		conn.Busy.Store(false)
		r.postCompletion(conn.ID, rearmWrite)
		return

	case httpproto.Done:
		conn.ReadBuf.Consume(consumed)
		pipelined := conn.ReadBuf.ReadableBytes() > 0
		if pipelined {
			r.log.Warnf("reactor: conn %d sent pipelined data; rejecting second request", conn.ID)
		}

		resolved := r.source.Resolve(req.Path, 0)
		r.buildResponse(conn, resolved, req.KeepAlive && !pipelined)
		conn.Busy.Store(false)
		r.postCompletion(conn.ID, rearmWrite)
	}
}

func (r *Reactor) buildResponse(conn *connection.Connection, resolved content.Resolved, keepAlive bool) {
	conn.WriteBuf.Reset()
	hdr := make([]byte, httpproto.HeaderLen(resolved.Status, resolved.ContentType, resolved.Body.Len(), keepAlive))
	httpproto.BuildHeader(hdr, resolved.Status, resolved.ContentType, resolved.Body.Len(), keepAlive)
	conn.WriteBuf.Append(hdr)
	if resolved.Body.External == nil {
		conn.WriteBuf.Append(resolved.Body.Inline)
	}

	conn.KeepAlive = keepAlive
	conn.Pending = &resolved
}

func (r *Reactor) postCompletion(id connection.ID, kind completionKind) {
	select {
	case r.completions <- completion{id: id, event: kind}:
	default:
		r.log.Warnf("reactor: completion queue full, dropping event for conn %d", id)
	}
	r.wake()
}

// wake is a no-op before Run has created the eventfd (notably, from unit
// tests that exercise worker-side logic directly without a live reactor
// loop), rather than writing to a meaningless fd number.
func (r *Reactor) wake() {
	if r.wakeFd < 0 {
		return
	}
	var val [8]byte
	val[0] = 1
	_, _ = unix.Write(r.wakeFd, val[:])
}

func (r *Reactor) drainWakeup() {
	var buf [8]byte
	for {
		_, err := unix.Read(r.wakeFd, buf[:])
		if err != nil {
			return
		}
	}
}

func (r *Reactor) drainCompletions() {
	for {
		select {
		case c := <-r.completions:
			r.applyCompletion(c)
		default:
			return
		}
	}
}

func (r *Reactor) applyCompletion(c completion) {
	conn, ok := r.table.Get(c.id)
	if !ok {
		return
	}
	switch c.event {
	case rearmRead:
		r.rearmRead(conn)
	case rearmWrite:
		r.rearmWrite(conn)
	case forceClose:
		r.closeConnection(c.id)
	}
}

func (r *Reactor) rearmRead(conn *connection.Connection) {
	events := uint32(unix.EPOLLIN | unix.EPOLLONESHOT)
	if r.cfg.TrigMode.connectionEdge() {
		events |= unix.EPOLLET
	}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, conn.Fd, &unix.EpollEvent{Events: events, Fd: int32(conn.Fd)})
}

func (r *Reactor) rearmWrite(conn *connection.Connection) {
	events := uint32(unix.EPOLLOUT | unix.EPOLLONESHOT)
	if r.cfg.TrigMode.connectionEdge() {
		events |= unix.EPOLLET
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, conn.Fd, &unix.EpollEvent{Events: events, Fd: int32(conn.Fd)}); err != nil {
		r.closeConnection(conn.ID)
	}
}

// flushWrite writev's the pending header (and external mmap body, if any)
// starting from conn.WriteOffset, tolerating partial writes across
// multiple writable events.
func (r *Reactor) flushWrite(conn *connection.Connection) {
	header := conn.WriteBuf.Peek()
	var external []byte
	if conn.Pending != nil {
		external = conn.Pending.Body.External
	}
	total := len(header) + len(external)

	off := conn.WriteOffset
	var iovs [][]byte
	switch {
	case off < len(header):
		iovs = [][]byte{header[off:]}
		if len(external) > 0 {
			iovs = append(iovs, external)
		}
	case off < total:
		iovs = [][]byte{external[off-len(header):]}
	default:
		iovs = nil
	}

	if len(iovs) > 0 {
		n, err := unix.Writev(conn.Fd, iovs)
		if err != nil && err != unix.EAGAIN {
			r.closeConnection(conn.ID)
			return
		}
		if n > 0 {
			conn.WriteOffset += n
		}
	}

	if conn.WriteOffset < total {
		r.rearmWrite(conn)
		return
	}

	r.onResponseFlushed(conn)
}

func (r *Reactor) onResponseFlushed(conn *connection.Connection) {
	conn.WriteOffset = 0
	if !conn.KeepAlive {
		r.closeConnection(conn.ID)
		return
	}

	conn.ResetForNextRequest()
	r.timer.Adjust(timer.ID(conn.ID), time.Duration(r.cfg.TimeoutMS)*time.Millisecond)
	r.rearmRead(conn)
}

// closeConnection tears down a connection's resources in a fixed order:
// deregister from epoll, remove from the timer, then remove from the
// table, which releases any mmap'd response body. Idempotent.
func (r *Reactor) closeConnection(id connection.ID) {
	conn, ok := r.table.Get(id)
	if !ok {
		return
	}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, conn.Fd, nil)
	r.timer.Del(timer.ID(id))
	r.table.Remove(id)
	unix.Close(conn.Fd)
}

// RequestClose lets a worker ask the reactor to close a connection without
// touching the socket, epoll, or the table itself — closing always routes
// through the reactor thread.
func (r *Reactor) RequestClose(id connection.ID) {
	r.postCompletion(id, forceClose)
}

