package server

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/s00inx/reactorweb/internal/config"
)

// testPort is fixed: the tests dial this well-known address rather than
// discovering an ephemeral one from the listener.
const testPort = 18080

var testDocRoot string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "reactorweb-server-test-*")
	if err != nil {
		panic(err)
	}
	testDocRoot = dir
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>hello</html>"), 0o644); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "404.html"), []byte("<html>nope</html>"), 0o644); err != nil {
		panic(err)
	}

	cfg := config.Config{
		Port:          testPort,
		TrigMode:      0,
		TimeoutMS:     300,
		ThreadNum:     4,
		OpenLog:       false,
		DocRoot:       dir,
		ErrorPagesDir: dir,
		MaxBodyBytes:  1 << 20,
	}
	srv, err := New(cfg)
	if err != nil {
		panic(err)
	}

	go func() {
		if err := srv.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "server run: %v\n", err)
		}
	}()
	time.Sleep(200 * time.Millisecond) // let the listener bind

	code := m.Run()
	srv.Stop()
	os.Exit(code)
}

func dialTest(t *testing.T) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", testPort))
	require.NoError(t, err)
	return conn
}

func TestSimpleGETReturnsIndexBody(t *testing.T) {
	conn := dialTest(t)
	defer conn.Close()

	_, err := fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "200 OK")

	var body strings.Builder
	headerDone := false
	for {
		// ReadString returns the final, unterminated body line together
		// with io.EOF, so keep the line before checking err.
		line, err := r.ReadString('\n')
		if headerDone {
			body.WriteString(line)
		} else if line == "\r\n" {
			headerDone = true
		}
		if err != nil {
			break
		}
	}
	require.Contains(t, body.String(), "hello")
}

func TestKeepAliveConnectionServesTwoRequests(t *testing.T) {
	conn := dialTest(t)
	defer conn.Close()
	r := bufio.NewReader(conn)

	for i := 0; i < 2; i++ {
		_, err := fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
		require.NoError(t, err)

		status, err := r.ReadString('\n')
		require.NoError(t, err)
		require.Contains(t, status, "200 OK")

		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			if line == "\r\n" {
				break
			}
		}
	}
}

func TestMissingFileReturns404(t *testing.T) {
	conn := dialTest(t)
	defer conn.Close()

	_, err := fmt.Fprintf(conn, "GET /nope.html HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	status, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "404 Not Found")
}

func TestMalformedRequestLineReturns400(t *testing.T) {
	conn := dialTest(t)
	defer conn.Close()

	_, err := fmt.Fprintf(conn, "NOT A REQUEST\r\n\r\n")
	require.NoError(t, err)

	status, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "400 Bad Request")
}

func TestIdleConnectionIsEvictedAfterTimeout(t *testing.T) {
	conn := dialTest(t)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	require.Error(t, err, "the server should have closed the idle connection once its inactivity timeout elapsed")
}
