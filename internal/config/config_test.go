package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Server.PoolSize)
	assert.Equal(t, 512, cfg.Server.ReadBuffer)
	assert.Equal(t, "main.html", cfg.Site.Index)
	assert.Equal(t, "404.html", cfg.Site.NotFound)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  addr: 0.0.0.0:8081
  pool_size: 8
  max_connections: 5
  accept_rate: 50
site:
  root: /srv/www
  handler_delay: 10s
  cache: true
admin:
  enabled: true
  addr: :9100
log:
  level: debug
  format: json
  file: /var/log/poolhttpd.log
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8081", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.PoolSize)
	assert.Equal(t, 5, cfg.Server.MaxConnections)
	assert.Equal(t, 50.0, cfg.Server.AcceptRate)
	assert.Equal(t, 512, cfg.Server.ReadBuffer, "unset fields keep their defaults")
	assert.Equal(t, "/srv/www", cfg.Site.Root)
	assert.Equal(t, "main.html", cfg.Site.Index)
	assert.Equal(t, Duration(10*time.Second), cfg.Site.HandlerDelay)
	assert.True(t, cfg.Site.Cache)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, ":9100", cfg.Admin.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "server": {"pool_size": 2},
  "site": {"index": "index.html", "handler_delay": "250ms"}
}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Server.PoolSize)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "index.html", cfg.Site.Index)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Site.HandlerDelay)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "config.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = LoadFile(writeConfig(t, "bad.yaml", "server: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = LoadFile(writeConfig(t, "bad.json", "{"))
	assert.ErrorContains(t, err, "failed to parse JSON")

	_, err = LoadFile(writeConfig(t, "delay.yaml", "site:\n  handler_delay: soon\n"))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero pool", func(c *Config) { c.Server.PoolSize = 0 }, "pool_size"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative max connections", func(c *Config) { c.Server.MaxConnections = -1 }, "max_connections"},
		{"negative accept rate", func(c *Config) { c.Server.AcceptRate = -1 }, "accept_rate"},
		{"zero read buffer", func(c *Config) { c.Server.ReadBuffer = 0 }, "read_buffer"},
		{"empty index", func(c *Config) { c.Site.Index = "" }, "site.index"},
		{"negative delay", func(c *Config) { c.Site.HandlerDelay = Duration(-time.Second) }, "handler_delay"},
		{"admin without addr", func(c *Config) { c.Admin.Enabled = true; c.Admin.Addr = "" }, "admin.addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestDurationMarshal(t *testing.T) {
	d := Duration(1500 * time.Millisecond)

	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))

	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", v)
}

func TestLoggerOptions(t *testing.T) {
	cfg := Default()
	cfg.Log.File = "/tmp/x.log"

	opts := cfg.LoggerOptions()
	assert.Equal(t, "info", opts.Level)
	assert.Equal(t, "/tmp/x.log", opts.File)
	assert.Equal(t, 100, opts.MaxSizeMB)
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "poolhttpd.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Server.PoolSize)
	assert.True(t, cfg.Site.Cache)
	assert.True(t, cfg.Admin.Enabled)
}
