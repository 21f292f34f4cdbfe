package discovery

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcp-bindgen-go/pkg/mcptransport"
)

// catalogDial backs each dial with an in-memory server advertising a fixed
// tool catalogue.
func catalogDial(tools []*mcp.Tool) DialFunc {
	return func(_ context.Context, serverName string, _ mcpconfig.ServerConfig) (*mcptransport.Handle, error) {
		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: "1.0.0"}, nil)
		for _, tool := range tools {
			server.AddTool(tool, noopHandler)
		}
		if _, err := server.Connect(context.Background(), serverTransport, nil); err != nil {
			return nil, err
		}
		return mcptransport.NewHandle(clientTransport), nil
	}
}

func noopHandler(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
}

func testOptions(dial DialFunc) *Options {
	return &Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dial:   dial,
	}
}

func objectSchema(property string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			property: {Type: "string"},
		},
		Required: []string{property},
	}
}

func TestServerDiscoversTools(t *testing.T) {
	t.Parallel()

	tools := []*mcp.Tool{
		{
			Name:         "echo",
			Description:  "Echo the message back.",
			InputSchema:  objectSchema("message"),
			OutputSchema: objectSchema("message"),
		},
		{
			Name:        "log",
			Description: "Record a line, no structured result.",
			InputSchema: objectSchema("line"),
		},
	}

	ops, err := Server(context.Background(), "echo", mcpconfig.ServerConfig{Command: "unused"}, testOptions(catalogDial(tools)))
	if err != nil {
		t.Fatalf("Server: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("discovered %d operations, expected 2", len(ops))
	}

	byName := make(map[string]Operation, len(ops))
	for _, op := range ops {
		byName[op.Name] = op
	}

	echo, ok := byName["echo"]
	if !ok {
		t.Fatal("echo tool missing from catalogue")
	}
	if echo.Description != "Echo the message back." {
		t.Fatalf("description = %q", echo.Description)
	}
	if echo.InputSchema == nil || echo.InputSchema.Type != "object" {
		t.Fatalf("input schema not preserved: %+v", echo.InputSchema)
	}
	if echo.OutputSchema == nil || echo.OutputSchema.Type != "object" {
		t.Fatalf("output schema not preserved: %+v", echo.OutputSchema)
	}
	if _, ok := echo.OutputSchema.Properties["message"]; !ok {
		t.Fatal("output schema properties not preserved")
	}

	logOp, ok := byName["log"]
	if !ok {
		t.Fatal("log tool missing from catalogue")
	}
	if logOp.OutputSchema != nil {
		t.Fatalf("log tool should have no output schema, got %+v", logOp.OutputSchema)
	}
}

func TestServerDialFailure(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("refused")
	dial := func(context.Context, string, mcpconfig.ServerConfig) (*mcptransport.Handle, error) {
		return nil, dialErr
	}
	_, err := Server(context.Background(), "down", mcpconfig.ServerConfig{Command: "unused"}, testOptions(dial))
	if !errors.Is(err, dialErr) {
		t.Fatalf("error = %v, expected dial cause", err)
	}
}

func TestAllToleratesFailingServer(t *testing.T) {
	t.Parallel()

	good := catalogDial([]*mcp.Tool{{
		Name:         "echo",
		InputSchema:  objectSchema("message"),
		OutputSchema: objectSchema("message"),
	}})
	dial := func(ctx context.Context, serverName string, cfg mcpconfig.ServerConfig) (*mcptransport.Handle, error) {
		if serverName == "bad" {
			return nil, errors.New("unreachable")
		}
		return good(ctx, serverName, cfg)
	}

	servers := map[string]mcpconfig.ServerConfig{
		"good": {Command: "unused"},
		"bad":  {Command: "unused"},
	}
	out := All(context.Background(), servers, testOptions(dial))

	if len(out) != 2 {
		t.Fatalf("expected results for both servers, got %d", len(out))
	}
	if len(out["good"]) != 1 {
		t.Fatalf("good server catalogue = %v, expected one tool", out["good"])
	}
	if out["bad"] != nil {
		t.Fatalf("bad server should contribute an empty catalogue, got %v", out["bad"])
	}
}

func TestNormalizeToolOutputSchemaFromMeta(t *testing.T) {
	t.Parallel()

	tool := &mcp.Tool{
		Name:        "legacy",
		InputSchema: objectSchema("query"),
		Meta: map[string]any{
			"outputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"result": map[string]any{"type": "string"},
				},
			},
		},
	}

	op := normalizeTool(tool)
	if op.OutputSchema == nil {
		t.Fatal("output schema should be recovered from tool metadata")
	}
	if op.OutputSchema.Type != "object" {
		t.Fatalf("recovered schema type = %q", op.OutputSchema.Type)
	}
	if _, ok := op.OutputSchema.Properties["result"]; !ok {
		t.Fatal("recovered schema properties missing")
	}
}

func TestNormalizeToolSnakeCaseMetaKey(t *testing.T) {
	t.Parallel()

	tool := &mcp.Tool{
		Name:        "legacy",
		InputSchema: objectSchema("query"),
		Meta: map[string]any{
			"output_schema": map[string]any{"type": "object"},
		},
	}
	op := normalizeTool(tool)
	if op.OutputSchema == nil || op.OutputSchema.Type != "object" {
		t.Fatalf("snake_case metadata key not honored: %+v", op.OutputSchema)
	}
}

func TestNormalizeToolNoOutputSchema(t *testing.T) {
	t.Parallel()

	op := normalizeTool(&mcp.Tool{Name: "plain", InputSchema: objectSchema("x")})
	if op.OutputSchema != nil {
		t.Fatalf("expected nil output schema, got %+v", op.OutputSchema)
	}
}
