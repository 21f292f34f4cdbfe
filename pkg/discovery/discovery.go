// Package discovery interrogates MCP servers for their advertised tools. Each
// server is contacted over a short-lived, non-pooled session: open transport,
// handshake, tools/list, unconditional teardown. Every transport-specific
// tool representation is normalized into one canonical Operation before any
// other component sees it, so downstream consumers never branch on
// representation shape.
package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcptransport"
)

// Operation is the canonical descriptor for one discovered tool. Produced
// once per discovery run and never mutated afterwards.
type Operation struct {
	Name         string
	Description  string
	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema
}

// DialFunc opens an unconnected transport for a server; see mcppool.DialFunc.
type DialFunc func(ctx context.Context, serverName string, cfg mcpconfig.ServerConfig) (*mcptransport.Handle, error)

// Options configure a discovery run.
type Options struct {
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// ClientName and ClientVersion identify this process during handshakes.
	ClientName    string
	ClientVersion string
	// Timeout bounds one server's discovery (connect through tools/list).
	// Defaults to 30s.
	Timeout time.Duration
	// Concurrency caps how many servers are interrogated at once by All.
	// Defaults to 4.
	Concurrency int
	// Dial overrides transport creation.
	Dial DialFunc
}

func (o *Options) normalized() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcp-bindgen"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Dial == nil {
		opts.Dial = func(_ context.Context, _ string, cfg mcpconfig.ServerConfig) (*mcptransport.Handle, error) {
			return mcptransport.Open(cfg)
		}
	}
	return opts
}

// Server discovers the tools advertised by a single server. The session and
// transport opened for discovery are released on every path, including
// handshake and list failures.
func Server(ctx context.Context, name string, cfg mcpconfig.ServerConfig, opts *Options) ([]Operation, error) {
	o := opts.normalized()
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	handle, err := o.Dial(ctx, name, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: open transport for %q", name)
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			o.Logger.Debug("transport close after discovery", "server", name, "error", closeErr)
		}
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: o.ClientName, Version: o.ClientVersion}, nil)
	session, err := client.Connect(ctx, handle.Transport, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: connect to %q", name)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			o.Logger.Debug("session close after discovery", "server", name, "error", closeErr)
		}
	}()

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: list tools on %q", name)
	}

	ops := make([]Operation, 0, len(res.Tools))
	for _, tool := range res.Tools {
		ops = append(ops, normalizeTool(tool))
	}
	return ops, nil
}

// All discovers tools from every configured server concurrently. Discovery
// failures are scoped to one server: they are logged and that server
// contributes an empty operation list, never aborting the run for the others.
func All(ctx context.Context, servers map[string]mcpconfig.ServerConfig, opts *Options) map[string][]Operation {
	o := opts.normalized()

	var (
		mu  sync.Mutex
		out = make(map[string][]Operation, len(servers))
	)
	var g errgroup.Group
	g.SetLimit(o.Concurrency)
	for name, cfg := range servers {
		g.Go(func() error {
			ops, err := Server(ctx, name, cfg, &o)
			if err != nil {
				o.Logger.Error("tool discovery failed", "server", name, "error", err)
				ops = nil
			} else {
				o.Logger.Info("discovered tools", "server", name, "count", len(ops))
			}
			mu.Lock()
			out[name] = ops
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// normalizeTool converts an SDK tool into the canonical Operation. The output
// schema is extracted tolerantly: servers built on older SDKs surface it
// through tool metadata rather than the dedicated field.
func normalizeTool(tool *mcp.Tool) Operation {
	out := tool.OutputSchema
	if out == nil {
		out = schemaFromMeta(tool.Meta, "outputSchema", "output_schema")
	}
	return Operation{
		Name:         tool.Name,
		Description:  tool.Description,
		InputSchema:  tool.InputSchema,
		OutputSchema: out,
	}
}

func schemaFromMeta(meta map[string]any, keys ...string) *jsonschema.Schema {
	for _, key := range keys {
		v, ok := meta[key]
		if !ok || v == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var s jsonschema.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		return &s
	}
	return nil
}
