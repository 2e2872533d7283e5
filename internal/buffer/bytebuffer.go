// Package buffer implements a growable byte ring with a read cursor and a
// write cursor, and a scatter-read helper for pulling socket data straight
// into it without an extra copy in the common case.
package buffer

import (
	"golang.org/x/sys/unix"
)

const (
	initialCap = 1024
	extraSize  = 64 * 1024
)

// ByteBuffer is a growable read/write byte container. It is not safe for
// concurrent use; callers serialize access via the busy-flag handoff
// described by the reactor package.
type ByteBuffer struct {
	buf        []byte
	readerIdx  int
	writerIdx  int
	extraSpace [extraSize]byte
}

// New returns an empty ByteBuffer with a small initial backing array.
func New() *ByteBuffer {
	return &ByteBuffer{buf: make([]byte, initialCap)}
}

// ReadableBytes returns the number of bytes available to Peek/Consume.
func (b *ByteBuffer) ReadableBytes() int { return b.writerIdx - b.readerIdx }

// WritableBytes returns the number of bytes available at the tail without
// growing the backing array.
func (b *ByteBuffer) WritableBytes() int { return len(b.buf) - b.writerIdx }

// Peek returns the unread portion of the buffer without consuming it.
func (b *ByteBuffer) Peek() []byte { return b.buf[b.readerIdx:b.writerIdx] }

// Consume advances the read cursor by n bytes, compacting the buffer back
// to the front once it has been fully drained.
func (b *ByteBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	b.readerIdx += n
	if b.readerIdx == b.writerIdx {
		b.readerIdx, b.writerIdx = 0, 0
	}
}

// Reset drops all buffered content; used when a keep-alive connection moves
// on to its next request.
func (b *ByteBuffer) Reset() {
	b.readerIdx, b.writerIdx = 0, 0
}

// Append writes bytes to the tail, growing the backing array by doubling if
// necessary. The buffer never shrinks on its own.
func (b *ByteBuffer) Append(p []byte) {
	b.ensureWritable(len(p))
	n := copy(b.buf[b.writerIdx:], p)
	b.writerIdx += n
}

func (b *ByteBuffer) ensureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	// compact first: sliding the unread region down to index 0 may free
	// enough space without growing the backing array at all.
	if b.readerIdx > 0 {
		copy(b.buf, b.buf[b.readerIdx:b.writerIdx])
		b.writerIdx -= b.readerIdx
		b.readerIdx = 0
		if b.WritableBytes() >= n {
			return
		}
	}
	newCap := len(b.buf)
	if newCap == 0 {
		newCap = initialCap
	}
	for newCap-b.writerIdx < n {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, b.buf[:b.writerIdx])
	b.buf = grown
}

// ReadFromFD performs a single scatter read: the socket's available bytes
// are pulled first into the buffer's writable tail and, if that overflows,
// into a 64 KiB extension region held inside the ByteBuffer, then copied
// back in. This lets
// one syscall fill the buffer past its current capacity without growing it
// speculatively on every read.
func (b *ByteBuffer) ReadFromFD(fd int) (int, error) {
	writable := b.WritableBytes()
	if writable == 0 {
		// still offer the extension region so we can detect how much more
		// there is to read and grow exactly that much.
		n, err := unix.Read(fd, b.extraSpace[:])
		if n > 0 {
			b.Append(b.extraSpace[:n])
		}
		return n, err
	}

	iov := [][]byte{b.buf[b.writerIdx:], b.extraSpace[:]}
	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}

	if n <= writable {
		b.writerIdx += n
		return n, nil
	}

	b.writerIdx = len(b.buf)
	overflow := n - writable
	b.Append(b.extraSpace[:overflow])
	return n, nil
}
