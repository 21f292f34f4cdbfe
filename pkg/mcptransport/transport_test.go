package mcptransport

import (
	"context"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
)

func TestOpenStdioBuildsCommandTransport(t *testing.T) {
	t.Parallel()

	handle, err := Open(mcpconfig.ServerConfig{
		Command: "npx",
		Args:    []string{"@modelcontextprotocol/server-everything"},
		Env:     map[string]string{"MCP_SERVER_MODE": "stdio"},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cmdTransport, ok := handle.Transport.(*mcp.CommandTransport)
	if !ok {
		t.Fatalf("expected CommandTransport, got %T", handle.Transport)
	}
	expectedArgs := []string{"npx", "@modelcontextprotocol/server-everything"}
	if !reflect.DeepEqual(cmdTransport.Command.Args, expectedArgs) {
		t.Fatalf("command args = %v, expected %v", cmdTransport.Command.Args, expectedArgs)
	}
	if !envContains(cmdTransport.Command.Env, "MCP_SERVER_MODE", "stdio") {
		t.Fatalf("env missing MCP_SERVER_MODE from config")
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenStreamableAndSSE(t *testing.T) {
	t.Parallel()

	handle, err := Open(mcpconfig.ServerConfig{URL: "https://example.com/mcp"})
	if err != nil {
		t.Fatalf("Open streamable: %v", err)
	}
	streamable, ok := handle.Transport.(*mcp.StreamableClientTransport)
	if !ok {
		t.Fatalf("expected StreamableClientTransport, got %T", handle.Transport)
	}
	if streamable.Endpoint != "https://example.com/mcp" {
		t.Fatalf("endpoint = %q", streamable.Endpoint)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	handle, err = Open(mcpconfig.ServerConfig{URL: "https://example.com/sse", Transport: mcpconfig.TransportSSE})
	if err != nil {
		t.Fatalf("Open sse: %v", err)
	}
	sse, ok := handle.Transport.(*mcp.SSEClientTransport)
	if !ok {
		t.Fatalf("expected SSEClientTransport, got %T", handle.Transport)
	}
	if sse.Endpoint != "https://example.com/sse" {
		t.Fatalf("endpoint = %q", sse.Endpoint)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsMisconfiguredEntries(t *testing.T) {
	t.Parallel()

	if _, err := Open(mcpconfig.ServerConfig{}); !errors.Is(err, mcpconfig.ErrNoCommandOrURL) {
		t.Fatalf("error = %v, expected ErrNoCommandOrURL", err)
	}
	if _, err := Open(mcpconfig.ServerConfig{Command: "server", Transport: "carrier-pigeon"}); !errors.Is(err, mcpconfig.ErrUnknownTransport) {
		t.Fatalf("error = %v, expected ErrUnknownTransport", err)
	}
	if _, err := Open(mcpconfig.ServerConfig{Transport: mcpconfig.TransportSSE}); err == nil {
		t.Fatal("sse transport without url should fail")
	}
	if _, err := Open(mcpconfig.ServerConfig{Transport: mcpconfig.TransportStdio}); err == nil {
		t.Fatal("stdio transport without command should fail")
	}
}

func TestHeaderDecoratorAttachesHeaders(t *testing.T) {
	t.Parallel()

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer example-token" {
			t.Fatalf("auth header mismatch, got %q", got)
		}
		if got := req.Header.Get("X-MCP-Source"); got != "transport-tests" {
			t.Fatalf("custom header missing, got %q", got)
		}
		return &http.Response{
			StatusCode: http.StatusNoContent,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	})

	client := &http.Client{Transport: &headerDecorator{
		next: rt,
		headers: map[string]string{
			"Authorization": "Bearer example-token",
			"X-MCP-Source":  "transport-tests",
		},
	}}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://example.com/mcp", nil)
	if err != nil {
		t.Fatalf("request creation failed: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("decorated client Do error: %v", err)
	}
	_ = resp.Body.Close()
}

func TestHTTPClientForWithoutHeadersKeepsDefaultTransport(t *testing.T) {
	t.Parallel()

	client := httpClientFor(nil)
	if client == http.DefaultClient {
		t.Fatal("httpClientFor should return a copy, not the shared default client")
	}
	if _, ok := client.Transport.(*headerDecorator); ok {
		t.Fatal("no decorator expected when no headers are configured")
	}
}

func TestHandleCloseRunsEveryCloser(t *testing.T) {
	t.Parallel()

	var first, second bool
	failure := errors.New("first closer failed")
	handle := NewHandle(nil,
		func() error { first = true; return failure },
		func() error { second = true; return nil },
	)

	err := handle.Close()
	if !errors.Is(err, failure) {
		t.Fatalf("Close error = %v, expected first closer failure", err)
	}
	if !first || !second {
		t.Fatalf("closers ran = (%v, %v), expected both", first, second)
	}
	// A second Close is a no-op.
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func envContains(env []string, key, value string) bool {
	target := key + "=" + value
	for _, item := range env {
		if item == target {
			return true
		}
	}
	return false
}
