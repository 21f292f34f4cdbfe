package mcpconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestServerConfigKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ServerConfig
		want    TransportKind
		wantErr error
	}{
		{
			name: "command infers stdio",
			cfg:  ServerConfig{Command: "npx", Args: []string{"@modelcontextprotocol/server-everything"}},
			want: TransportStdio,
		},
		{
			name: "url infers streamable http",
			cfg:  ServerConfig{URL: "https://gitmcp.io/modelcontextprotocol/go-sdk"},
			want: TransportStreamableHTTP,
		},
		{
			name: "explicit sse",
			cfg:  ServerConfig{URL: "https://example.com/sse", Transport: TransportSSE},
			want: TransportSSE,
		},
		{
			name: "http alias",
			cfg:  ServerConfig{URL: "https://example.com/mcp", Transport: "http"},
			want: TransportStreamableHTTP,
		},
		{
			name: "explicit tag wins over command",
			cfg:  ServerConfig{Command: "server", URL: "https://example.com/mcp", Transport: TransportStreamableHTTP},
			want: TransportStreamableHTTP,
		},
		{
			name:    "neither command nor url",
			cfg:     ServerConfig{},
			wantErr: ErrNoCommandOrURL,
		},
		{
			name:    "unknown transport tag",
			cfg:     ServerConfig{Command: "server", Transport: "carrier-pigeon"},
			wantErr: ErrUnknownTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.cfg.Kind()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Kind() error = %v, expected %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Kind() error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Kind() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestParseValidConfig(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"mcpServers": {
			"github": {
				"command": "npx",
				"args": ["-y", "@modelcontextprotocol/server-github"],
				"env": {"GITHUB_TOKEN": "secret"}
			},
			"docs": {
				"url": "https://gitmcp.io/modelcontextprotocol/go-sdk",
				"headers": {"Authorization": "Bearer token"}
			}
		}
	}`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.ServerNames(); !reflect.DeepEqual(got, []string{"docs", "github"}) {
		t.Fatalf("ServerNames() = %v, expected sorted [docs github]", got)
	}

	github, ok := cfg.Server("github")
	if !ok {
		t.Fatal("github server missing")
	}
	if github.Command != "npx" || len(github.Args) != 2 || github.Env["GITHUB_TOKEN"] != "secret" {
		t.Fatalf("github config not preserved: %#v", github)
	}

	docs, ok := cfg.Server("docs")
	if !ok {
		t.Fatal("docs server missing")
	}
	if docs.URL != "https://gitmcp.io/modelcontextprotocol/go-sdk" || docs.Headers["Authorization"] != "Bearer token" {
		t.Fatalf("docs config not preserved: %#v", docs)
	}
	if _, ok := cfg.Server("ghost"); ok {
		t.Fatal("unexpected server entry")
	}
}

func TestParseRejectsInvalidServer(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"mcpServers": {"broken": {}}}`))
	if !errors.Is(err, ErrNoCommandOrURL) {
		t.Fatalf("Parse error = %v, expected ErrNoCommandOrURL", err)
	}

	_, err = Parse([]byte(`{"mcpServers"`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcp.json")
	content := []byte(`{"mcpServers": {"echo": {"command": "echo-server"}}}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cfg.Server("echo"); !ok {
		t.Fatal("loaded config missing echo server")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := ServerConfig{URL: "https://example.com/mcp", Transport: TransportSSE}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	invalid := ServerConfig{Transport: TransportStdio}
	if err := invalid.Validate(); err == nil {
		t.Fatal("stdio transport without command should fail validation")
	}
}
