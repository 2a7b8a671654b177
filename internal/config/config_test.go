package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragebait.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.Empty(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
store:
  driver: redis
  redis_addr: localhost:6379
engine:
  endpoint: http://models:9000
  timeout: 5s
  rate_per_second: 2.5
scanner:
  workers: 8
languages: [en, de]
fetch:
  max_age: 90m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "http://models:9000", cfg.Engine.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 2.5, cfg.Engine.RatePerSecond)
	assert.Equal(t, uint32(5), cfg.Engine.BreakerFailures)
	assert.Equal(t, 8, cfg.Scanner.Workers)
	assert.Equal(t, []string{"en", "de"}, cfg.Languages)
	assert.Equal(t, 90*time.Minute, cfg.Fetch.MaxAge)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  addr: :9000\n")
	t.Setenv("RAGEBAIT_SERVER_ADDR", ":7000")
	t.Setenv("RAGEBAIT_SCANNER_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Scanner.Workers)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "store: [nope"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "store:\n  driver: mongo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo_uri")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "etcd"
	cfg.Engine.Endpoint = ""
	cfg.Scanner.Workers = 0
	cfg.Fetch.MaxAge = -time.Second

	assert.Len(t, cfg.Validate(), 4)
}
