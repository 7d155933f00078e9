package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "/v1", cfg.Server.BasePath)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, 10, cfg.Pagination.DefaultLimit)
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
storage:
  driver: postgres
pagination:
  default_limit: 25
webhooks:
  - url: http://hooks.local/quotes
    events: [quote.approved]
`))
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Storage.Driver)
	require.Equal(t, 25, cfg.Pagination.DefaultLimit)
	require.Equal(t, 100, cfg.Pagination.MaxLimit)
	require.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	require.Len(t, cfg.Webhooks, 1)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"driver":    "storage:\n  driver: mysql\n",
		"ttl":       "auth:\n  token_ttl: 0s\n",
		"limits":    "pagination:\n  default_limit: 50\n  max_limit: 10\n",
		"webhook":   "webhooks:\n  - url: \"\"\n",
		"base_path": "server:\n  base_path: v1\n",
	}
	for name, doc := range cases {
		_, err := FromYAML([]byte(doc))
		require.Error(t, err, name)
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "quoteline.yml"), []byte("server:\n  addr: 0.0.0.0:9000\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestNormalizeLimit(t *testing.T) {
	cfg := Default()
	require.Equal(t, 10, cfg.NormalizeLimit(0))
	require.Equal(t, 5, cfg.NormalizeLimit(5))
	require.Equal(t, 100, cfg.NormalizeLimit(1000))
}
