// Package mcpconfig models the standard mcpServers configuration file used to
// declare MCP servers, including transport-kind inference and validation. It
// is the single source of truth for how a server is reached; the transport,
// pool, and generator packages all consume ServerConfig values produced here.
package mcpconfig

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
)

// TransportKind identifies the wire mechanism used to reach an MCP server.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// ErrNoCommandOrURL is reported for server entries that declare neither a
// command to launch nor a URL to contact.
var ErrNoCommandOrURL = errors.New("mcpconfig: server must set either command or url")

// ErrUnknownTransport is reported for an explicit transport tag that does not
// name a supported wire mechanism.
var ErrUnknownTransport = errors.New("mcpconfig: unknown transport")

// ServerConfig declares how to launch or contact a single MCP server. Exactly
// one of Command and URL must be set. The zero value is invalid.
type ServerConfig struct {
	// Command, Args, and Env describe a subprocess for stdio transports.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// URL and Headers describe an HTTP endpoint for streaming transports.
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Transport pins the wire mechanism explicitly. When empty it is inferred:
	// a command implies stdio, otherwise a URL implies streamable-http.
	Transport TransportKind `json:"transport,omitempty"`
}

// Kind resolves the transport kind for the entry, inferring it when no
// explicit tag is present.
func (c ServerConfig) Kind() (TransportKind, error) {
	switch c.Transport {
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
		return c.Transport, nil
	case "http":
		// Accepted alias kept for compatibility with older config files.
		return TransportStreamableHTTP, nil
	case "":
	default:
		return "", errors.Wrapf(ErrUnknownTransport, "%q", c.Transport)
	}
	if c.Command != "" {
		return TransportStdio, nil
	}
	if c.URL != "" {
		return TransportStreamableHTTP, nil
	}
	return "", ErrNoCommandOrURL
}

// Validate reports whether the entry is well formed enough to open a
// transport.
func (c ServerConfig) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return err
	}
	switch kind {
	case TransportStdio:
		if c.Command == "" {
			return errors.Newf("mcpconfig: command required for %s transport", kind)
		}
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return errors.Newf("mcpconfig: url required for %s transport", kind)
		}
	}
	return nil
}

// Config is the parsed form of an mcp.json file.
type Config struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// Parse decodes a Config from raw JSON and validates every server entry.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "mcpconfig: parse")
	}
	for name, sc := range cfg.Servers {
		if err := sc.Validate(); err != nil {
			return nil, errors.Wrapf(err, "mcpconfig: server %q", name)
		}
	}
	return &cfg, nil
}

// Load reads and parses a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "mcpconfig: read config")
	}
	return Parse(data)
}

// Server returns the configuration for a named server.
func (c *Config) Server(name string) (ServerConfig, bool) {
	sc, ok := c.Servers[name]
	return sc, ok
}

// ServerNames returns the configured server names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
