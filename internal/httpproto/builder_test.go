package httpproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildHeaderRoundTripSimpleGET(t *testing.T) {
	dst := make([]byte, HeaderLen(StatusOK, "text/html", 2, true))
	n := BuildHeader(dst, StatusOK, "text/html", 2, true)

	got := string(dst[:n])
	require.Contains(t, got, "HTTP/1.1 200 OK\r\n")
	require.Contains(t, got, "Connection: keep-alive\r\n")
	require.Contains(t, got, "keep-alive: max=6, timeout=120\r\n")
	require.Contains(t, got, "Content-type: text/html\r\n")
	require.Contains(t, got, "Content-length: 2\r\n")
	require.Equal(t, n, len(got))
}

func TestBuildHeaderCloseOmitsKeepAliveHeader(t *testing.T) {
	dst := make([]byte, HeaderLen(StatusNotFound, "text/html", 0, false))
	n := BuildHeader(dst, StatusNotFound, "text/html", 0, false)

	got := string(dst[:n])
	require.Contains(t, got, "HTTP/1.1 404 Not Found\r\n")
	require.Contains(t, got, "Connection: close\r\n")
	require.NotContains(t, got, "keep-alive:")
}

func TestHeaderLenMatchesActualWrite(t *testing.T) {
	for _, keepAlive := range []bool{true, false} {
		for _, status := range []StatusCode{StatusOK, StatusBadRequest, StatusForbidden, StatusNotFound} {
			predicted := HeaderLen(status, "application/octet-stream", 12345, keepAlive)
			dst := make([]byte, predicted)
			n := BuildHeader(dst, status, "application/octet-stream", 12345, keepAlive)
			require.Equal(t, predicted, n)
		}
	}
}
