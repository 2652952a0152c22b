package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Tokenizer.MinGram)
	assert.Equal(t, 10, cfg.Tokenizer.MaxGram)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 2.0, cfg.Search.TitleBoost)
	assert.Equal(t, 200, cfg.Search.SnippetLength)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
index:
  path: /var/lib/convsearch
  reloadDelay: 2s
search:
  titleBoost: 3.5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("CS_INGEST_WORKERS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/convsearch", cfg.Index.Path)
	assert.Equal(t, 2*time.Second, cfg.Index.ReloadDelay)
	assert.Equal(t, 3.5, cfg.Search.TitleBoost)
	assert.Equal(t, 9, cfg.Ingest.Workers)
	assert.Equal(t, 10, cfg.Tokenizer.MaxGram)
}

func TestValidateRejectsBadTokenizer(t *testing.T) {
	cfg := Default()
	cfg.Tokenizer.MinGram = 4
	cfg.Tokenizer.MaxGram = 3
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.TitleBoost = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
