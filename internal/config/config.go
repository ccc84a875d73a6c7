// Package config holds the two small configuration surfaces this binary
// reads: the seed file describing servers to auto-register at startup, and
// the gateway's own bootstrap settings (listen address, store path, pool
// tuning), sourced from a JSON file on disk plus environment variable
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Seed is the top-level shape of a seed file: a named map of servers to
// register on startup or whenever the file changes.
type Seed struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// ServerConfig describes one server to discover and register. It mirrors
// the hub's original per-server config shape (disabled flag, timeout,
// env expansion) narrowed to the three transport kinds this registry
// supports.
type ServerConfig struct {
	Disabled bool              `json:"disabled,omitempty"`
	Timeout  int               `json:"timeout,omitempty"` // seconds
	Env      map[string]string `json:"env,omitempty"`

	Type string `json:"type,omitempty"` // stdio | http | sse; inferred if empty

	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// TransportType returns the normalized transport kind, inferring it from
// the populated fields when Type is not set explicitly.
func (s *ServerConfig) TransportType() string {
	if s.Type != "" {
		return normalizeTransport(s.Type)
	}
	if s.URL != "" {
		return "http"
	}
	return "stdio"
}

func normalizeTransport(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "stdio":
		return "stdio"
	case "sse":
		return "sse"
	case "http", "streamable-http", "streamablehttp":
		return "http"
	default:
		return strings.ToLower(strings.TrimSpace(t))
	}
}

func (s *ServerConfig) TimeoutDuration() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

// LoadSeed reads and parses a seed file, expanding "~" and environment
// variables the same way the hub's config loader did.
func LoadSeed(path string) (*Seed, error) {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("config: parse seed file: %w", err)
	}

	seed.processEnvVars()

	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func (s *Seed) processEnvVars() {
	for name, srv := range s.Servers {
		for k, v := range srv.Env {
			srv.Env[k] = os.ExpandEnv(v)
		}
		srv.Command = os.ExpandEnv(srv.Command)
		for i, a := range srv.Args {
			srv.Args[i] = os.ExpandEnv(a)
		}
		srv.URL = os.ExpandEnv(srv.URL)
		for k, v := range srv.Headers {
			srv.Headers[k] = os.ExpandEnv(v)
		}
		s.Servers[name] = srv
	}
}

// Validate rejects a seed whose enabled entries are missing the field
// their transport kind requires.
func (s *Seed) Validate() error {
	for name, srv := range s.Servers {
		if srv.Disabled {
			continue
		}
		switch srv.TransportType() {
		case "stdio":
			if srv.Command == "" {
				return fmt.Errorf("config: server %s: command is required for stdio transport", name)
			}
		case "http", "sse":
			if srv.URL == "" {
				return fmt.Errorf("config: server %s: url is required for %s transport", name, srv.TransportType())
			}
		default:
			return fmt.Errorf("config: server %s: unsupported transport type %q", name, srv.TransportType())
		}
	}
	return nil
}

// Enabled returns every non-disabled server in the seed.
func (s *Seed) Enabled() map[string]ServerConfig {
	out := make(map[string]ServerConfig)
	for name, srv := range s.Servers {
		if !srv.Disabled {
			out[name] = srv
		}
	}
	return out
}

// Gateway holds the process-level settings read once at startup.
type Gateway struct {
	ListenAddr    string
	StorePath     string
	SeedPath      string
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// FromEnv builds a Gateway config from environment variables, falling back
// to sensible defaults for a local run.
func FromEnv() Gateway {
	g := Gateway{
		ListenAddr:    ":8080",
		StorePath:     "mcp-registry.db",
		IdleTimeout:   300 * time.Second,
		SweepInterval: 60 * time.Second,
	}

	if v := os.Getenv("MCP_REGISTRY_ADDR"); v != "" {
		if strings.Contains(v, ":") {
			g.ListenAddr = v
		} else {
			g.ListenAddr = ":" + v
		}
	}
	if v := os.Getenv("MCP_REGISTRY_STORE"); v != "" {
		g.StorePath = v
	}
	if v := os.Getenv("MCP_REGISTRY_SEED"); v != "" {
		g.SeedPath = v
	}
	if v := os.Getenv("MCP_REGISTRY_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			g.IdleTimeout = time.Duration(n) * time.Second
		}
	}
	return g
}
