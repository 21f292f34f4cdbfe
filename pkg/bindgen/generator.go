// Package bindgen turns discovered MCP tool catalogues into generated Go
// source: one package per server with typed callables and a load-time config
// registration, plus a root package that re-exports every binding grouped by
// server. Output is byte-deterministic for identical inputs.
package bindgen

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/discovery"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/schemagen"
)

// ErrOutputExists is reported when the output directory already exists and
// overwriting was not requested.
var ErrOutputExists = errors.New("bindgen: output directory already exists")

// defaultRuntimeImportPath anchors the generated imports of the runtime
// support packages (mcppool, mcpconfig).
const defaultRuntimeImportPath = "github.com/vikashloomba/mcp-bindgen-go/pkg"

// Options configure a Generator.
type Options struct {
	// OutputDir is where generated packages are written.
	OutputDir string
	// ImportPath is the Go import path corresponding to OutputDir; the root
	// aggregator uses it to import the per-server packages.
	ImportPath string
	// RuntimeImportPath overrides where generated code imports the runtime
	// support packages from. Defaults to this module's pkg tree.
	RuntimeImportPath string
	// Force allows writing into an existing output directory.
	Force bool
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Discovery configures the discovery phase.
	Discovery *discovery.Options
}

// ServerReport summarizes one server's discovery and generation outcome.
type ServerReport struct {
	Server     string
	Discovered int
	Generated  int
	Skipped    int
	// SkippedTools names the tools excluded by the eligibility policy (no
	// output schema, or an output schema that is not an object).
	SkippedTools []string
}

// Report aggregates per-server outcomes, ordered by server name.
type Report struct {
	Servers []ServerReport
}

// Generator drives discovery and code generation for one configuration.
type Generator struct {
	cfg        *mcpconfig.Config
	opts       Options
	discovered map[string][]discovery.Operation
}

// New constructs a Generator for the given configuration.
func New(cfg *mcpconfig.Config, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RuntimeImportPath == "" {
		opts.RuntimeImportPath = defaultRuntimeImportPath
	}
	return &Generator{cfg: cfg, opts: opts}
}

// DiscoverAll interrogates every configured server and caches the result.
// Per-server failures yield an empty catalogue for that server only.
func (g *Generator) DiscoverAll(ctx context.Context) map[string][]discovery.Operation {
	if g.discovered == nil {
		g.discovered = discovery.All(ctx, g.cfg.Servers, g.opts.Discovery)
	}
	return g.discovered
}

// Generate writes the generated source tree. It fails with ErrOutputExists
// when the output directory is already present and Force is unset; any other
// filesystem failure is fatal to the whole run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	discovered := g.DiscoverAll(ctx)

	if _, err := os.Stat(g.opts.OutputDir); err == nil && !g.opts.Force {
		return nil, errors.Wrapf(ErrOutputExists, "%q (use force to overwrite)", g.opts.OutputDir)
	} else if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "bindgen: stat output directory")
	}
	if err := os.MkdirAll(g.opts.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "bindgen: create output directory")
	}

	report := &Report{}
	var exports []serverExports
	for _, server := range g.cfg.ServerNames() {
		ops := discovered[server]
		eligible, skipped := partitionEligible(ops)
		sr := ServerReport{
			Server:       server,
			Discovered:   len(ops),
			Generated:    len(eligible),
			Skipped:      len(skipped),
			SkippedTools: skipped,
		}
		report.Servers = append(report.Servers, sr)
		for _, tool := range skipped {
			g.opts.Logger.Debug("skipping tool: output schema missing or not an object",
				"server", server, "tool", tool)
		}
		if len(eligible) == 0 {
			g.opts.Logger.Warn("no supported tools, skipping package generation", "server", server)
			continue
		}

		cfg, _ := g.cfg.Server(server)
		if err := g.writeServerPackage(server, cfg, eligible); err != nil {
			return nil, err
		}
		exports = append(exports, newServerExports(server, eligible))
	}

	if err := g.writeRootPackage(exports); err != nil {
		return nil, err
	}
	g.opts.Logger.Info("generated code written", "dir", g.opts.OutputDir)
	return report, nil
}

// partitionEligible splits a catalogue into tools that get typed bindings and
// the names of tools excluded by policy, both sorted by tool name.
func partitionEligible(ops []discovery.Operation) (eligible []discovery.Operation, skipped []string) {
	for _, op := range ops {
		if schemagen.Eligible(op.OutputSchema) {
			eligible = append(eligible, op)
		} else {
			skipped = append(skipped, op.Name)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Name < eligible[j].Name })
	sort.Strings(skipped)
	return eligible, skipped
}

func (g *Generator) writeServerPackage(server string, cfg mcpconfig.ServerConfig, ops []discovery.Operation) error {
	pkg := schemagen.PackageIdent(server)
	dir := filepath.Join(g.opts.OutputDir, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "bindgen: create package directory for %q", server)
	}
	tools := emitToolsFile(server, pkg, ops, g.opts.RuntimeImportPath)
	if err := os.WriteFile(filepath.Join(dir, "tools.go"), []byte(tools), 0o644); err != nil {
		return errors.Wrapf(err, "bindgen: write tools.go for %q", server)
	}
	register := emitRegisterFile(server, pkg, cfg, g.opts.RuntimeImportPath)
	if err := os.WriteFile(filepath.Join(dir, "register.go"), []byte(register), 0o644); err != nil {
		return errors.Wrapf(err, "bindgen: write register.go for %q", server)
	}
	return nil
}

func (g *Generator) writeRootPackage(exports []serverExports) error {
	src := emitRootFile(g.opts.ImportPath, exports)
	path := filepath.Join(g.opts.OutputDir, "bindings.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return errors.Wrap(err, "bindgen: write root bindings")
	}
	return nil
}
