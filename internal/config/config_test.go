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
	path := filepath.Join(t.TempDir(), "bivouac.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "host", cfg.Identity)
	assert.Equal(t, BackendLoam, cfg.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.QuietPeriod)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
backend: redis
quietPeriod: 250ms
redis:
  addr: redis.local:6380
roster:
  players:
    player-1: [hero-1, hero-2]
  entities: [hero-1, hero-2, npc-1]
  scene: [hero-1, npc-1]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.QuietPeriod)
	assert.Equal(t, "redis.local:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"hero-1", "hero-2"}, cfg.Roster.Players["player-1"])
	assert.Equal(t, []string{"hero-1", "npc-1"}, cfg.Roster.Scene)
	// Untouched keys keep their defaults.
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "backend: loam\nhttpAddr: ':9999'\n")
	t.Setenv("BIVOUAC_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, ":9999", cfg.HTTPAddr, "env leaves unset keys alone")
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendLoam, cfg.Backend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeFile(t, "backend: carrier-pigeon\n")
	_, err := Load(path)
	assert.Error(t, err)
}
