package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotkeeper/internal/registry"
	"github.com/teemow/slotkeeper/internal/server"
)

func TestNewServeCmd_Defaults(t *testing.T) {
	cmd := newServeCmd()

	tests := []struct {
		flag     string
		expected string
	}{
		{flag: "transport", expected: transportStdio},
		{flag: "http-addr", expected: ":8080"},
		{flag: "config", expected: ""},
		{flag: "yolo", expected: "false"},
		{flag: "debug", expected: "false"},
		{flag: "metrics-enabled", expected: "true"},
		{flag: "metrics-addr", expected: server.DefaultMetricsAddr},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.expected, f.DefValue)
		})
	}
}

func TestRunServe_UnsupportedTransport(t *testing.T) {
	err := runServe(serveOptions{transport: "sse"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport type: sse")
}

func TestRunServe_InvalidConfig(t *testing.T) {
	err := runServe(serveOptions{transport: transportStdio, configPath: "/nonexistent/slotkeeper.yaml"})
	assert.Error(t, err)
}

func TestNewHTTPHandler(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Options{
		Registry: registry.New(registry.Config{Capacity: 2}),
	})
	require.NoError(t, err)
	health := server.NewHealthChecker(sc)

	mcpSrv := mcpserver.NewMCPServer("slotkeeper", "test", mcpserver.WithToolCapabilities(true))
	ts := httptest.NewServer(newHTTPHandler(mcpSrv, health))
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}

	health.SetReady(false)
	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
