package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/server"
)

// skipIfSandboxed skips when err means the environment refuses loopback sockets.
func skipIfSandboxed(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	sandboxed := errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES)
	msg := strings.ToLower(err.Error())
	sandboxed = sandboxed || strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
	if sandboxed {
		t.Skipf("loopback networking unavailable: %v", err)
	}
}

// listenOrSkip binds IPv4 loopback explicitly; some hosts default to IPv6-only.
func listenOrSkip(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	skipIfSandboxed(t, err)
	require.NoError(t, err)
	return listener
}

// newTestServer serves handler on loopback until the test ends.
func newTestServer(t *testing.T, handler http.Handler) (*httptest.Server, *http.Client) {
	t.Helper()
	ts := &httptest.Server{Listener: listenOrSkip(t), Config: &http.Server{Handler: handler}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func newAppServer(opts server.Options) *server.Server {
	opts.Config = config.ServerConfig{Host: "127.0.0.1"}
	return server.New(opts)
}

// get fetches url and returns the status, content type and body.
func get(t *testing.T, client *http.Client, url string) (int, string, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // test cleanup
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}
