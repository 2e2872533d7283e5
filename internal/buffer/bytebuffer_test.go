package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendConsumeRoundTrip(t *testing.T) {
	b := New()
	b.Append([]byte("hello "))
	b.Append([]byte("world"))

	require.Equal(t, "hello world", string(b.Peek()))
	require.Equal(t, 11, b.ReadableBytes())

	b.Consume(6)
	require.Equal(t, "world", string(b.Peek()))

	b.Consume(5)
	require.Equal(t, 0, b.ReadableBytes())
}

func TestAppendGrowsByDoubling(t *testing.T) {
	b := New()
	before := len(b.buf)

	big := make([]byte, before*3)
	b.Append(big)

	require.GreaterOrEqual(t, len(b.buf), before*3)
	require.Equal(t, len(big), b.ReadableBytes())
}

func TestConsumeCompactsToFront(t *testing.T) {
	b := New()
	b.Append([]byte("0123456789"))
	b.Consume(10)

	require.Equal(t, 0, b.readerIdx)
	require.Equal(t, 0, b.writerIdx)
}

func TestResetDropsContent(t *testing.T) {
	b := New()
	b.Append([]byte("data"))
	b.Reset()

	require.Equal(t, 0, b.ReadableBytes())
	require.Equal(t, len(b.buf), b.WritableBytes())
}

func TestConsumeClampsToReadable(t *testing.T) {
	b := New()
	b.Append([]byte("abc"))
	b.Consume(100)

	require.Equal(t, 0, b.ReadableBytes())
}
