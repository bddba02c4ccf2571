package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwynia/corticai/pkg/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corticai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "./data/graph", cfg.DatabasePath)
	assert.False(t, cfg.AutoCreate)
	assert.False(t, cfg.InMemory)
	assert.Equal(t, "upsert", cfg.DuplicateNodes)
	assert.Empty(t, cfg.IndexPath)
	assert.Zero(t, cfg.TraversalBudget)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 100, cfg.Runtime.GCPercent)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CORTICAI_DATABASE_PATH", "/tmp/graph")
	t.Setenv("CORTICAI_AUTO_CREATE", "yes")
	t.Setenv("CORTICAI_IN_MEMORY", "1")
	t.Setenv("CORTICAI_DUPLICATE_NODES", "reject")
	t.Setenv("CORTICAI_INDEX_PATH", "/tmp/index.json")
	t.Setenv("CORTICAI_TRAVERSAL_BUDGET", "500")
	t.Setenv("CORTICAI_LOG_LEVEL", "debug")
	t.Setenv("CORTICAI_LOG_FORMAT", "json")

	cfg := LoadFromEnv()

	assert.Equal(t, "/tmp/graph", cfg.DatabasePath)
	assert.True(t, cfg.AutoCreate)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, "reject", cfg.DuplicateNodes)
	assert.Equal(t, "/tmp/index.json", cfg.IndexPath)
	assert.Equal(t, 500, cfg.TraversalBudget)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromEnv_BadIntKeepsDefault(t *testing.T) {
	t.Setenv("CORTICAI_TRAVERSAL_BUDGET", "lots")
	assert.Zero(t, LoadFromEnv().TraversalBudget)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
database_path: /var/lib/corticai
auto_create: true
sync_writes: true
duplicate_nodes: reject
index_path: /var/lib/corticai/index.json
traversal_budget: 10000
logging:
  level: warn
  format: json
runtime:
  memory_limit: 2GB
  gc_percent: 50
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/corticai", cfg.DatabasePath)
	assert.True(t, cfg.AutoCreate)
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, "reject", cfg.DuplicateNodes)
	assert.Equal(t, "/var/lib/corticai/index.json", cfg.IndexPath)
	assert.Equal(t, 10000, cfg.TraversalBudget)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ByteSize(2*1024*1024*1024), cfg.Runtime.MemoryLimit)
	assert.Equal(t, 50, cfg.Runtime.GCPercent)
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "auto_create: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.AutoCreate)
	assert.Equal(t, "./data/graph", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadFile(writeConfig(t, "database_pth: ./typo\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database_pth")
	})

	t.Run("non-scalar memory limit", func(t *testing.T) {
		_, err := LoadFile(writeConfig(t, "runtime:\n  memory_limit: [1, 2]\n"))
		require.Error(t, err)
	})
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database_path: /from/file\ntraversal_budget: 10\n")
	t.Setenv("CORTICAI_DATABASE_PATH", "/from/env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DatabasePath)
	assert.Equal(t, 10, cfg.TraversalBudget)
}

func TestLoad_NoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./data/graph", cfg.DatabasePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"empty path", func(c *Config) { c.DatabasePath = " " }, "database path"},
		{"empty path in memory", func(c *Config) { c.DatabasePath = ""; c.InMemory = true }, ""},
		{"bad duplicate policy", func(c *Config) { c.DuplicateNodes = "merge" }, "merge"},
		{"uppercase duplicate policy", func(c *Config) { c.DuplicateNodes = "REJECT" }, ""},
		{"negative budget", func(c *Config) { c.TraversalBudget = -1 }, "traversal budget"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"negative memory", func(c *Config) { c.Runtime.MemoryLimit = -1 }, "memory limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuplicatePolicy(t *testing.T) {
	cfg := Default()
	policy, err := cfg.DuplicatePolicy()
	require.NoError(t, err)
	assert.Equal(t, storage.DuplicateUpsert, policy)

	cfg.DuplicateNodes = "Reject"
	policy, err = cfg.DuplicatePolicy()
	require.NoError(t, err)
	assert.Equal(t, storage.DuplicateReject, policy)
}

func TestConfigString(t *testing.T) {
	cfg := Default()
	s := cfg.String()
	assert.Contains(t, s, "./data/graph")
	assert.Contains(t, s, "Index: none")

	cfg.InMemory = true
	cfg.IndexPath = "/tmp/index.json"
	s = cfg.String()
	assert.Contains(t, s, "Database: memory")
	assert.Contains(t, s, "/tmp/index.json")
}
