// Package main is the entry point for the mcp-bindgen CLI, which discovers
// tools from the MCP servers declared in an mcp.json file and generates typed
// Go bindings for them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/bindgen"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
)

const version = "0.1.0"

var (
	configPath string
	outputDir  string
	importPath string
	force      bool
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-bindgen",
		Short: "Generate typed Go bindings for MCP server tools",
		Long: `mcp-bindgen reads an mcp.json configuration, connects to every declared
MCP server, discovers the tools it advertises, and generates Go packages
with statically-typed callables that invoke those tools through a pooled,
lazily-established session at runtime.

Tools without an object-typed output schema cannot be decoded into a typed
record and are skipped; the per-server summary reports how many.`,
		Example: `  # Generate bindings for the servers declared in .mcp/mcp.json
  mcp-bindgen --output gen --import-path example.com/myapp/gen

  # Overwrite a previous run
  mcp-bindgen -c mcp.json -o gen -p example.com/myapp/gen --force`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          run,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", ".mcp/mcp.json", "path to the mcp.json configuration file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "_generated", "output directory for generated code")
	cmd.Flags().StringVarP(&importPath, "import-path", "p", "", "Go import path corresponding to the output directory (required)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing output directory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	_ = cmd.MarkFlagRequired("import-path")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := mcpconfig.Load(configPath)
	if err != nil {
		return err
	}

	generator := bindgen.New(cfg, bindgen.Options{
		OutputDir:  outputDir,
		ImportPath: importPath,
		Force:      force,
		Logger:     logger,
	})
	report, err := generator.Generate(ctx)
	if err != nil {
		return err
	}

	printReport(cmd, report)
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Generated code saved to %s\n", outputDir)
	return nil
}

func printReport(cmd *cobra.Command, report *bindgen.Report) {
	out := cmd.OutOrStdout()
	for _, sr := range report.Servers {
		line := fmt.Sprintf("%s: %d tools discovered, %d generated", sr.Server, sr.Discovered, sr.Generated)
		if sr.Skipped > 0 {
			line += fmt.Sprintf(" (%d skipped)", sr.Skipped)
		}
		switch {
		case sr.Generated == 0:
			color.New(color.FgYellow).Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
		if verbose {
			for _, tool := range sr.SkippedTools {
				fmt.Fprintf(out, "  skipped: %s\n", tool)
			}
		}
	}
}
