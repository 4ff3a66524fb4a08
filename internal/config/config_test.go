package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iadas/internal/config"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3030/ds/sparql"}, cfg.Endpoint.URLs)
	assert.Equal(t, 30*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10000, cfg.Query.Limit)
	assert.Equal(t, ":8003", cfg.Server.Addr)
	assert.Equal(t, "iadas-journal.db", cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Zero(t, cfg.Endpoint.RateLimit)
	assert.Equal(t, 10, cfg.Endpoint.Burst)
}

func TestDefaultMatchesLoad(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, config.Default())
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "iadas.yaml")
	content := `
endpoint:
  urls:
    - "http://fuseki-a:3030/iadas/sparql"
    - "http://fuseki-b:3030/iadas/sparql"
  update_url: "http://fuseki-a:3030/iadas/update"
  timeout: 5s
cache:
  ttl: 90s
server:
  addr: "0.0.0.0:9000"
  cors_origins: ["https://ia-das.org"]
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://fuseki-a:3030/iadas/sparql", "http://fuseki-b:3030/iadas/sparql"}, cfg.Endpoint.URLs)
	assert.Equal(t, "http://fuseki-a:3030/iadas/update", cfg.Endpoint.UpdateURL)
	assert.Equal(t, 5*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://ia-das.org"}, cfg.Server.CORSOrigins)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("IADAS_SERVER_ADDR", "127.0.0.1:8080")
	t.Setenv("IADAS_ENDPOINT_URLS", "http://a:3030/ds/sparql,http://b:3030/ds/sparql")
	t.Setenv("IADAS_QUERY_LIMIT", "500")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://a:3030/ds/sparql", "http://b:3030/ds/sparql"}, cfg.Endpoint.URLs)
	assert.Equal(t, 500, cfg.Query.Limit)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "iadas.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: loud\n"), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoint.URLs = []string{"ftp://x", "http://"}
	cfg.Endpoint.Timeout = 0
	cfg.Server.Addr = "nonsense"
	cfg.Cache.TTL = -time.Second
	cfg.Query.Limit = 0
	cfg.Journal.Path = ""
	cfg.Endpoint.RateLimit = -1

	errs := cfg.Validate()
	require.Len(t, errs, 8)

	var joined string
	for _, err := range errs {
		joined += err.Error() + "\n"
	}
	for _, field := range []string{"scheme", "missing host", "endpoint.timeout", "server.addr", "cache.ttl", "query.limit", "journal.path", "endpoint.rate_limit"} {
		assert.Contains(t, joined, field)
	}
}

func TestValidate_EmptyURLs(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoint.URLs = nil
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "endpoint.urls")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.ParseLevel(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, err == nil)
		})
	}
}
