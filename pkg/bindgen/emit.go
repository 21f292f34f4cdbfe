package bindgen

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/discovery"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/schemagen"
)

const generatedHeader = "// Code generated by mcp-bindgen. DO NOT EDIT.\n\n"

// serverExports records the callables a server package exposes, for the root
// aggregator.
type serverExports struct {
	Server  string
	Package string
	Funcs   []string
}

func newServerExports(server string, ops []discovery.Operation) serverExports {
	ex := serverExports{Server: server, Package: schemagen.PackageIdent(server)}
	for _, op := range ops {
		ex.Funcs = append(ex.Funcs, schemagen.FuncName(server, op.Name))
	}
	sort.Strings(ex.Funcs)
	return ex
}

// emitToolsFile renders the typed input/output records and one callable per
// eligible tool for a server package.
func emitToolsFile(server, pkg string, ops []discovery.Operation, runtimePath string) string {
	var b strings.Builder
	b.WriteString(generatedHeader)
	fmt.Fprintf(&b, "// Package %s provides typed bindings for the %q MCP server.\n", pkg, server)
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("import (\n")
	b.WriteString("\t\"context\"\n\n")
	b.WriteString("\t\"github.com/modelcontextprotocol/go-sdk/mcp\"\n\n")
	fmt.Fprintf(&b, "\t%q\n", runtimePath+"/mcppool")
	b.WriteString(")\n\n")

	for _, op := range ops {
		emitTypes(&b, server, op)
	}
	for _, op := range ops {
		emitFunc(&b, server, op)
	}
	return b.String()
}

// emitTypes renders the input record (when the input schema is an object) and
// the output record for one tool.
func emitTypes(b *strings.Builder, server string, op discovery.Operation) {
	input := schemagen.Compile(schemagen.TypeName(server, op.Name, "Input"), op.InputSchema)
	if src := schemagen.RenderStruct(input, schemagen.RenderInput); src != "" {
		b.WriteString(src)
		b.WriteString("\n")
	}
	output := schemagen.Compile(schemagen.TypeName(server, op.Name, "Output"), op.OutputSchema)
	if src := schemagen.RenderStruct(output, schemagen.RenderOutput); src != "" {
		b.WriteString(src)
		b.WriteString("\n")
	}
}

// emitFunc renders one callable. The body resolves the pooled session, sends
// the input record as the argument map (absent optional fields are dropped by
// omitempty), and decodes the result into the output record.
func emitFunc(b *strings.Builder, server string, op discovery.Operation) {
	funcName := schemagen.FuncName(server, op.Name)
	outName := schemagen.TypeName(server, op.Name, "Output")

	doc := op.Description
	if doc == "" {
		doc = fmt.Sprintf("%s invokes the %q tool on the %q MCP server.", funcName, op.Name, server)
	}
	for _, line := range strings.Split(strings.TrimRight(doc, "\n"), "\n") {
		if line == "" {
			b.WriteString("//\n")
		} else {
			fmt.Fprintf(b, "// %s\n", line)
		}
	}

	input := schemagen.Compile(schemagen.TypeName(server, op.Name, "Input"), op.InputSchema)
	arg := "in"
	if input.Kind == schemagen.KindRecord {
		fmt.Fprintf(b, "func %s(ctx context.Context, in %s) (*%s, error) {\n", funcName, input.Name, outName)
	} else {
		// No structured input schema: fall back to a free-form argument map.
		fmt.Fprintf(b, "func %s(ctx context.Context, args map[string]any) (*%s, error) {\n", funcName, outName)
		arg = "args"
	}
	fmt.Fprintf(b, "\tsession, err := mcppool.Default().GetSession(ctx, %q)\n", server)
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\tres, err := session.CallTool(ctx, &mcp.CallToolParams{Name: %q, Arguments: %s})\n", op.Name, arg)
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\tvar out %s\n", outName)
	b.WriteString("\tif err := mcppool.DecodeResult(res, &out); err != nil {\n\t\treturn nil, err\n\t}\n")
	b.WriteString("\treturn &out, nil\n}\n\n")
}

// emitRegisterFile renders the load-time side effect that registers the
// server's configuration with the default pool.
func emitRegisterFile(server, pkg string, cfg mcpconfig.ServerConfig, runtimePath string) string {
	var b strings.Builder
	b.WriteString(generatedHeader)
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("import (\n")
	fmt.Fprintf(&b, "\t%q\n", runtimePath+"/mcpconfig")
	fmt.Fprintf(&b, "\t%q\n", runtimePath+"/mcppool")
	b.WriteString(")\n\n")
	b.WriteString("func init() {\n")
	fmt.Fprintf(&b, "\tmcppool.Default().RegisterConfig(%q, mcpconfig.ServerConfig{\n", server)
	if cfg.Command != "" {
		fmt.Fprintf(&b, "\t\tCommand: %q,\n", cfg.Command)
	}
	if len(cfg.Args) > 0 {
		fmt.Fprintf(&b, "\t\tArgs: %s,\n", stringSliceLit(cfg.Args))
	}
	if len(cfg.Env) > 0 {
		fmt.Fprintf(&b, "\t\tEnv: %s,\n", stringMapLit(cfg.Env, "\t\t"))
	}
	if cfg.URL != "" {
		fmt.Fprintf(&b, "\t\tURL: %q,\n", cfg.URL)
	}
	if len(cfg.Headers) > 0 {
		fmt.Fprintf(&b, "\t\tHeaders: %s,\n", stringMapLit(cfg.Headers, "\t\t"))
	}
	if lit := transportLit(cfg.Transport); lit != "" {
		fmt.Fprintf(&b, "\t\tTransport: %s,\n", lit)
	}
	b.WriteString("\t})\n}\n")
	return b.String()
}

// emitRootFile renders the root aggregator: one package re-exporting every
// generated callable grouped by server.
func emitRootFile(importPath string, exports []serverExports) string {
	pkg := schemagen.PackageIdent(path.Base(importPath))
	sort.Slice(exports, func(i, j int) bool { return exports[i].Server < exports[j].Server })

	var b strings.Builder
	b.WriteString(generatedHeader)
	fmt.Fprintf(&b, "// Package %s aggregates generated MCP tool bindings grouped by server.\n", pkg)
	fmt.Fprintf(&b, "package %s\n", pkg)
	if len(exports) == 0 {
		return b.String()
	}
	b.WriteString("\nimport (\n")
	for _, ex := range exports {
		fmt.Fprintf(&b, "\t%q\n", importPath+"/"+ex.Package)
	}
	b.WriteString(")\n")
	for _, ex := range exports {
		fmt.Fprintf(&b, "\n// %s\nvar (\n", ex.Server)
		for _, fn := range ex.Funcs {
			fmt.Fprintf(&b, "\t%s = %s.%s\n", fn, ex.Package, fn)
		}
		b.WriteString(")\n")
	}
	return b.String()
}

func stringSliceLit(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

func stringMapLit(m map[string]string, indent string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("map[string]string{\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s\t%q: %q,\n", indent, k, m[k])
	}
	fmt.Fprintf(&b, "%s}", indent)
	return b.String()
}

func transportLit(kind mcpconfig.TransportKind) string {
	switch kind {
	case mcpconfig.TransportStdio:
		return "mcpconfig.TransportStdio"
	case mcpconfig.TransportSSE:
		return "mcpconfig.TransportSSE"
	case mcpconfig.TransportStreamableHTTP, "http":
		return "mcpconfig.TransportStreamableHTTP"
	default:
		return ""
	}
}
