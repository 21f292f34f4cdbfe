// Package mcptransport opens wire transports to MCP servers declared by
// mcpconfig. Each supported kind (subprocess stdio, SSE event stream,
// bidirectional streamable HTTP) is mapped onto the corresponding
// modelcontextprotocol/go-sdk transport. Open returns a Handle that bundles
// the transport with the auxiliary resources it allocated so callers can
// release everything on every exit path, independently of the session that
// was established over it.
package mcptransport

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
)

// ErrUnsupportedTransport is reported when a config resolves to a transport
// kind this package cannot open.
var ErrUnsupportedTransport = errors.New("mcptransport: unsupported transport")

// Handle owns one unconnected transport and the resources backing it. The
// transport is handed to an MCP client for the handshake; Close releases the
// backing resources and must be called exactly once, after the session using
// the transport has been closed (or when no session was established).
type Handle struct {
	Transport mcp.Transport

	closers []func() error
}

// NewHandle bundles a transport with the close functions that release its
// backing resources. Custom dialers use it to hand the pool transports it did
// not open itself.
func NewHandle(transport mcp.Transport, closers ...func() error) *Handle {
	return &Handle{Transport: transport, closers: closers}
}

// Close releases every resource backing the transport. Individual failures do
// not stop the remaining resources from being released.
func (h *Handle) Close() error {
	var errs []error
	for _, close := range h.closers {
		if err := close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// Open builds a transport for the server configuration, dispatching on its
// resolved kind. The returned handle is not yet connected; the caller performs
// the protocol handshake through an MCP client.
func Open(cfg mcpconfig.ServerConfig) (*Handle, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case mcpconfig.TransportStdio:
		return openStdio(cfg)
	case mcpconfig.TransportSSE:
		return openSSE(cfg)
	case mcpconfig.TransportStreamableHTTP:
		return openStreamable(cfg)
	default:
		return nil, errors.Wrapf(ErrUnsupportedTransport, "%q", kind)
	}
}

func openStdio(cfg mcpconfig.ServerConfig) (*Handle, error) {
	if cfg.Command == "" {
		return nil, errors.New("mcptransport: command required for stdio transport")
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	// The subprocess lifetime is owned by the session; CommandTransport
	// terminates it when the connection closes, so the handle has nothing
	// extra to release.
	return &Handle{Transport: &mcp.CommandTransport{Command: cmd}}, nil
}

func openSSE(cfg mcpconfig.ServerConfig) (*Handle, error) {
	if cfg.URL == "" {
		return nil, errors.New("mcptransport: url required for sse transport")
	}
	client := httpClientFor(cfg.Headers)
	transport := &mcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: client}
	return &Handle{
		Transport: transport,
		closers:   []func() error{idleCloser(client)},
	}, nil
}

func openStreamable(cfg mcpconfig.ServerConfig) (*Handle, error) {
	if cfg.URL == "" {
		return nil, errors.New("mcptransport: url required for streamable-http transport")
	}
	client := httpClientFor(cfg.Headers)
	transport := &mcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: client}
	return &Handle{
		Transport: transport,
		closers:   []func() error{idleCloser(client)},
	}, nil
}

func idleCloser(client *http.Client) func() error {
	return func() error {
		client.CloseIdleConnections()
		return nil
	}
}

// httpClientFor wraps the default client with a RoundTripper that attaches the
// configured headers to every outbound request.
func httpClientFor(headers map[string]string) *http.Client {
	client := *http.DefaultClient
	if len(headers) > 0 {
		client.Transport = &headerDecorator{
			next:    defaultRoundTripper(client.Transport),
			headers: headers,
		}
	}
	return &client
}

type headerDecorator struct {
	next    http.RoundTripper
	headers map[string]string
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
	return d.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}
