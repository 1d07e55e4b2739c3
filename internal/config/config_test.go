package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.App.Port)
	assert.Equal(t, 400, cfg.Ingest.ChunkSize)
	assert.Equal(t, 100, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Retrieval.TopN)
	assert.Equal(t, 800, cfg.Retrieval.MaxHistoryTokens)
	assert.Equal(t, 2.0, cfg.Retrieval.TokenEstimateRatio)
	assert.Equal(t, 1024, cfg.Models.EmbeddingDimensions)
	assert.Equal(t, int64(100)<<20, cfg.MaxFileSizeBytes())
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
}

func TestLoadTomlFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[app]
port = 9100

[ingest]
chunk_size = 512
`), 0o644))

	t.Setenv("CONFIG_FILE", tomlPath)
	// Environment wins over the file.
	t.Setenv("CHUNK_SIZE", "256")
	t.Setenv("WATCH_DIRS", "/data/docs, /data/reports")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, 256, cfg.Ingest.ChunkSize)
	assert.Equal(t, []string{"/data/docs", "/data/reports"}, cfg.Ingest.WatchDirs)
}

func TestLoadRejectsTopNAboveTopK(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("TOP_K", "3")
	t.Setenv("TOP_N", "5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_n")
}

func TestLoadRejectsBadEmbeddingDimensions(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("EMBEDDING_DIMENSIONS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding_dimensions")
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "rag"
	cfg.MySQL.Password = "secret"
	cfg.MySQL.Host = "db.internal"
	cfg.MySQL.Port = 3307
	cfg.MySQL.DB = "knowledge"

	assert.Equal(t,
		"rag:secret@tcp(db.internal:3307)/knowledge?parseTime=true&loc=Local&charset=utf8mb4",
		cfg.MySQLDSN())
}
