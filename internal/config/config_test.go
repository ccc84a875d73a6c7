package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-dev/mcp-registry/internal/config"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSeedExpandsEnvVarsInCommandAndArgs(t *testing.T) {
	t.Setenv("ECHO_BIN", "/usr/bin/echo")

	path := writeSeed(t, `{
		"servers": {
			"echo": {"command": "$ECHO_BIN", "args": ["${ECHO_BIN}", "hi"]}
		}
	}`)

	seed, err := config.LoadSeed(path)
	require.NoError(t, err)

	srv := seed.Servers["echo"]
	assert.Equal(t, "/usr/bin/echo", srv.Command)
	assert.Equal(t, []string{"/usr/bin/echo", "hi"}, srv.Args)
}

func TestLoadSeedRejectsStdioEntryMissingCommand(t *testing.T) {
	path := writeSeed(t, `{"servers": {"broken": {"type": "stdio"}}}`)

	_, err := config.LoadSeed(path)
	assert.Error(t, err)
}

func TestLoadSeedRejectsHTTPEntryMissingURL(t *testing.T) {
	path := writeSeed(t, `{"servers": {"broken": {"type": "http"}}}`)

	_, err := config.LoadSeed(path)
	assert.Error(t, err)
}

func TestLoadSeedSkipsValidationForDisabledEntries(t *testing.T) {
	path := writeSeed(t, `{"servers": {"off": {"disabled": true, "type": "http"}}}`)

	seed, err := config.LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Enabled(), 0)
}

func TestTransportTypeInfersFromPopulatedFields(t *testing.T) {
	withURL := config.ServerConfig{URL: "http://localhost:9"}
	assert.Equal(t, "http", withURL.TransportType())

	bare := config.ServerConfig{Command: "foo"}
	assert.Equal(t, "stdio", bare.TransportType())

	explicit := config.ServerConfig{Type: "streamable-http"}
	assert.Equal(t, "http", explicit.TransportType())
}

func TestEnabledFiltersOutDisabledServers(t *testing.T) {
	seed := &config.Seed{Servers: map[string]config.ServerConfig{
		"a": {URL: "http://a"},
		"b": {URL: "http://b", Disabled: true},
	}}

	enabled := seed.Enabled()
	assert.Contains(t, enabled, "a")
	assert.NotContains(t, enabled, "b")
}

func TestFromEnvAppliesOverridesAndDefaults(t *testing.T) {
	t.Setenv("MCP_REGISTRY_ADDR", "9090")
	t.Setenv("MCP_REGISTRY_STORE", "/tmp/custom.db")
	t.Setenv("MCP_REGISTRY_SEED", "")
	t.Setenv("MCP_REGISTRY_IDLE_TIMEOUT_SECONDS", "45")

	g := config.FromEnv()
	assert.Equal(t, ":9090", g.ListenAddr)
	assert.Equal(t, "/tmp/custom.db", g.StorePath)
	assert.Equal(t, "", g.SeedPath)
	assert.Equal(t, 45*time.Second, g.IdleTimeout)
}
