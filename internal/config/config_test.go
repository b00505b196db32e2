package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
rating:
  source: database
  default_mode: monthly
database:
  url: postgres://app@db:5432/rating
cache:
  enabled: true
  ttl: 2h
server:
  addr: ":9090"
carriers:
  - id: mutual
    url: https://rates.mutual.example/v1/quote
    products: [life_term]
    timeout: 3s
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Rating.Source, cfg.Rating.Source)
	assert.Equal(t, "annual", cfg.Rating.DefaultMode)
	assert.Equal(t, d.Server.Addr, cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Carriers)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rating.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "database", cfg.Rating.Source)
	assert.Equal(t, "monthly", cfg.Rating.DefaultMode)
	assert.Equal(t, "postgres://app@db:5432/rating", cfg.Database.URL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	// unset keys keep their defaults
	assert.Equal(t, Default().Database.MaxOpen, cfg.Database.MaxOpen)

	require.Len(t, cfg.Carriers, 1)
	assert.Equal(t, "mutual", cfg.Carriers[0].ID)
	assert.Equal(t, []string{"life_term"}, cfg.Carriers[0].Products)
	assert.Equal(t, 3*time.Second, cfg.Carriers[0].Timeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rating.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	t.Setenv("RATING_DATABASE_URL", "postgres://override@db:5432/rating")
	t.Setenv("RATING_RATING_DEFAULT_MODE", "quarterly")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://override@db:5432/rating", cfg.Database.URL)
	assert.Equal(t, "quarterly", cfg.Rating.DefaultMode)
	assert.Equal(t, "database", cfg.Rating.Source)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rating.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rating: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rating.json")
	cfg := Default()
	cfg.Rating.Source = "store"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "store", loaded.Rating.Source)
}

func TestGetSet(t *testing.T) {
	orig := Get()
	t.Cleanup(func() { Set(orig) })

	cfg := Default()
	cfg.Server.Addr = ":1234"
	Set(cfg)
	assert.Same(t, cfg, Get())
}
