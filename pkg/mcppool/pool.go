// Package mcppool maintains at most one live MCP session per configured
// server for the lifetime of a process. Sessions are established lazily on
// first use, creation is serialized per server so concurrent callers share a
// single connection attempt, and the pool survives partial failures: one
// unreachable server never affects another's session. Generated bindings call
// Default().GetSession at invocation time; applications that want an isolated
// pool (tests, embedded use) construct their own with New.
package mcppool

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcptransport"
)

// ErrPoolClosed is reported by GetSession when the pool has been closed and
// the requested server has no registered configuration to reopen with.
var ErrPoolClosed = errors.New("mcppool: pool is closed")

// ErrNotConfigured is reported by GetSession for servers that were never
// registered with the pool.
var ErrNotConfigured = errors.New("mcppool: server not configured")

// ErrConnect marks every transport or handshake failure surfaced by
// GetSession; use errors.Is to detect it without matching message text.
var ErrConnect = errors.New("mcppool: connection failed")

// DialFunc opens an unconnected transport for a server. The default is
// mcptransport.Open; tests substitute their own to avoid real processes and
// sockets.
type DialFunc func(ctx context.Context, serverName string, cfg mcpconfig.ServerConfig) (*mcptransport.Handle, error)

// Options configure a Pool.
type Options struct {
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// ClientName and ClientVersion identify this process during the MCP
	// handshake. ClientName defaults to "mcp-bindgen", ClientVersion to
	// "1.0.0".
	ClientName    string
	ClientVersion string
	// ConnectTimeout bounds transport open plus handshake for one server.
	// Defaults to 30s.
	ConnectTimeout time.Duration
	// ShutdownTimeout bounds the synchronous Shutdown path. Defaults to 5s.
	ShutdownTimeout time.Duration
	// Interactive overrides terminal detection when deciding between a soft
	// close and a full shutdown on termination signals.
	Interactive *bool
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
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = func(_ context.Context, _ string, cfg mcpconfig.ServerConfig) (*mcptransport.Handle, error) {
			return mcptransport.Open(cfg)
		}
	}
	return opts
}

type pooledSession struct {
	session *mcp.ClientSession
	handle  *mcptransport.Handle
}

// Pool caches live MCP sessions keyed by server name.
type Pool struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*pooledSession
	locks    map[string]chan struct{}
	configs  map[string]mcpconfig.ServerConfig
	closed   bool
}

// New constructs an empty pool. Pass nil options for defaults.
func New(opts *Options) *Pool {
	return &Pool{
		opts:     opts.normalized(),
		sessions: make(map[string]*pooledSession),
		locks:    make(map[string]chan struct{}),
		configs:  make(map[string]mcpconfig.ServerConfig),
	}
}

var (
	defaultPool *Pool
	defaultOnce sync.Once
)

// Default returns the process-wide pool used by generated bindings. It is
// created on first use.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(nil)
	})
	return defaultPool
}

func (p *Pool) logger() *slog.Logger { return p.opts.Logger }

// RegisterConfig stores the configuration for a server. Registering into a
// closed pool reopens it: a fresh registration signals intent to keep using
// the pool.
func (p *Pool) RegisterConfig(name string, cfg mcpconfig.ServerConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger().Info("pool was closed, reopening for config registration", "server", name)
		p.closed = false
	}
	p.configs[name] = cfg
	if _, ok := p.locks[name]; !ok {
		p.locks[name] = make(chan struct{}, 1)
	}
}

// Servers returns the names of all registered servers in sorted order.
func (p *Pool) Servers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.configs))
	for name := range p.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsClosed reports whether CloseAll has run without a subsequent reopen.
func (p *Pool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// GetSession returns the live session for the named server, establishing it
// on first use. Creation is serialized per server: when several goroutines
// race for an unconnected server, exactly one performs the connection attempt
// and the rest reuse its result. A closed pool reopens automatically when the
// server still has a registered configuration and fails with ErrPoolClosed
// otherwise. A pool that closes while the connection is being established
// releases the fresh session and fails with ErrPoolClosed.
func (p *Pool) GetSession(ctx context.Context, name string) (*mcp.ClientSession, error) {
	p.mu.Lock()
	if p.closed {
		if _, ok := p.configs[name]; !ok {
			p.mu.Unlock()
			return nil, errors.Wrapf(ErrPoolClosed, "server %q", name)
		}
		p.logger().Info("pool was closed, auto-reopening", "server", name)
		p.closed = false
	}
	if ps := p.sessions[name]; ps != nil {
		p.mu.Unlock()
		return ps.session, nil
	}
	cfg, ok := p.configs[name]
	if !ok {
		available := make([]string, 0, len(p.configs))
		for n := range p.configs {
			available = append(available, n)
		}
		sort.Strings(available)
		p.mu.Unlock()
		return nil, errors.Wrapf(ErrNotConfigured, "server %q (available: %v)", name, available)
	}
	lock := p.lockForLocked(name)
	p.mu.Unlock()

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-lock }()

	// Re-check under the per-server lock: a racing caller may have connected
	// while we waited.
	p.mu.Lock()
	if ps := p.sessions[name]; ps != nil {
		p.mu.Unlock()
		return ps.session, nil
	}
	p.mu.Unlock()

	session, handle, err := p.connect(ctx, name, cfg)
	if err != nil {
		// The entry stays unconnected; the next GetSession retries.
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		// CloseAll ran while the connection was being established. Storing
		// the session now would leak it past the idempotency guard, so
		// release it instead.
		p.mu.Unlock()
		p.logger().Info("pool closed during connect, releasing fresh session", "server", name)
		p.discardSession(name, session, handle)
		return nil, errors.Wrapf(ErrPoolClosed, "server %q", name)
	}
	p.sessions[name] = &pooledSession{session: session, handle: handle}
	p.mu.Unlock()
	p.logger().Info("connected to MCP server", "server", name)

	go p.watchSession(name, session)
	return session, nil
}

func (p *Pool) lockForLocked(name string) chan struct{} {
	lock, ok := p.locks[name]
	if !ok {
		lock = make(chan struct{}, 1)
		p.locks[name] = lock
	}
	return lock
}

func (p *Pool) connect(ctx context.Context, name string, cfg mcpconfig.ServerConfig) (*mcp.ClientSession, *mcptransport.Handle, error) {
	connectCtx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()

	handle, err := p.opts.Dial(connectCtx, name, cfg)
	if err != nil {
		return nil, nil, errors.Mark(errors.Wrapf(err, "mcppool: connect to server %q", name), ErrConnect)
	}
	client := mcp.NewClient(&mcp.Implementation{
		Name:    p.opts.ClientName,
		Version: p.opts.ClientVersion,
	}, nil)
	session, err := client.Connect(connectCtx, handle.Transport, nil)
	if err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			p.logger().Debug("transport close after failed handshake", "server", name, "error", closeErr)
		}
		return nil, nil, errors.Mark(errors.Wrapf(err, "mcppool: connect to server %q", name), ErrConnect)
	}
	return session, handle, nil
}

// discardSession releases a session that lost the race with CloseAll and
// must not enter the pool.
func (p *Pool) discardSession(name string, session *mcp.ClientSession, handle *mcptransport.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ShutdownTimeout)
	defer cancel()
	if err := closeWithContext(ctx, session.Close); err != nil {
		p.logger().Debug("session close after losing close race", "server", name, "error", err)
	}
	if err := closeWithContext(ctx, handle.Close); err != nil {
		p.logger().Debug("transport close after losing close race", "server", name, "error", err)
	}
}

// watchSession drops the cache entry when the session terminates on its own
// (server exit, broken pipe) so the next GetSession reconnects.
func (p *Pool) watchSession(name string, session *mcp.ClientSession) {
	err := session.Wait()
	p.mu.Lock()
	ps := p.sessions[name]
	if ps == nil || ps.session != session {
		p.mu.Unlock()
		return
	}
	delete(p.sessions, name)
	handle := ps.handle
	p.mu.Unlock()
	if err != nil {
		p.logger().Warn("MCP session terminated", "server", name, "error", err)
	}
	if closeErr := handle.Close(); closeErr != nil {
		p.logger().Debug("transport close after session loss", "server", name, "error", closeErr)
	}
}

// CloseServer tears down the named server's session and transport. The two
// steps are independent: a session-close failure is logged and the transport
// close is still attempted, and the server is removed from the pool
// regardless of either outcome.
func (p *Pool) CloseServer(ctx context.Context, name string) error {
	p.mu.Lock()
	ps := p.sessions[name]
	delete(p.sessions, name)
	p.mu.Unlock()
	if ps == nil {
		return nil
	}

	var errs []error
	if err := closeWithContext(ctx, ps.session.Close); err != nil {
		p.logger().Debug("session close", "server", name, "error", err)
		errs = append(errs, errors.Wrapf(err, "close session for %q", name))
	}
	if err := closeWithContext(ctx, ps.handle.Close); err != nil {
		p.logger().Debug("transport close", "server", name, "error", err)
		errs = append(errs, errors.Wrapf(err, "close transport for %q", name))
	}
	return errors.Join(errs...)
}

// closeWithContext runs a close function on its own goroutine so an
// unresponsive peer cannot block shutdown past the caller's deadline.
func closeWithContext(ctx context.Context, close func() error) error {
	done := make(chan error, 1)
	go func() { done <- close() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// CloseAll closes every pooled session and marks the pool closed. The closed
// flag is set before any teardown starts so concurrent GetSession calls fail
// fast instead of racing a fresh connection into a draining pool. Individual
// close failures are tolerated; registered configurations are kept so the
// pool can reopen. CloseAll is idempotent.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	names := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	p.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := p.CloseServer(ctx, name); err != nil {
			p.logger().Debug("close server", "server", name, "error", err)
			errs = append(errs, err)
		}
	}

	p.mu.Lock()
	p.sessions = make(map[string]*pooledSession)
	p.mu.Unlock()
	p.logger().Info("all MCP connections closed")
	return errors.Join(errs...)
}

// SoftClose drops every session and transport but leaves the pool open, so
// the next GetSession reconnects without an explicit reopen. Used when an
// interactive process catches an interrupt but keeps running.
func (p *Pool) SoftClose(ctx context.Context) {
	p.mu.Lock()
	names := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	p.mu.Unlock()
	for _, name := range names {
		if err := p.CloseServer(ctx, name); err != nil {
			p.logger().Debug("soft close", "server", name, "error", err)
		}
	}
}

// Reopen clears the closed flag without touching session state. It is a
// no-op on an open pool.
func (p *Pool) Reopen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		return
	}
	p.closed = false
	p.logger().Info("connection pool reopened")
}

// Shutdown drives CloseAll to completion synchronously under the configured
// ShutdownTimeout. It is safe to call from a deferred statement on every exit
// path; an unresponsive server is abandoned rather than allowed to block
// process exit, and no close failure escapes to the caller.
func (p *Pool) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ShutdownTimeout)
	defer cancel()
	if err := p.CloseAll(ctx); err != nil {
		p.logger().Debug("shutdown cleanup", "error", err)
	}
}
