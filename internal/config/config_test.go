package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "nope" },
			wantErr: "unknown provider",
		},
		{
			name:    "missing model",
			mutate:  func(c *Config) { c.Model = "" },
			wantErr: "model is required",
		},
		{
			name:    "bad effort",
			mutate:  func(c *Config) { c.ReasoningEffort = "max" },
			wantErr: "reasoning_effort",
		},
		{
			name:    "overlap not smaller than window",
			mutate:  func(c *Config) { c.Retrieval.Overlap = c.Retrieval.ChunkSize },
			wantErr: "retrieval.overlap",
		},
		{
			name:    "history too small",
			mutate:  func(c *Config) { c.HistoryLimit = 1 },
			wantErr: "history_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model = "qwen3:14b"
	cfg.ThinkingTimeout = 90 * time.Second
	require.NoError(t, cfg.SaveFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFileMissingReturnsNil(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: ollama\nmodel: llama3.1:8b\n"), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, EffortMedium, cfg.ReasoningEffort)
	assert.Equal(t, 30, cfg.HistoryLimit)
	assert.Equal(t, DefaultRetrieval(), cfg.Retrieval)
	require.NoError(t, cfg.Validate())
}

func TestGetProvider(t *testing.T) {
	assert.NotNil(t, GetProvider("ollama"))
	assert.Equal(t, "https://api.groq.com/openai/v1", GetProvider("groq").BaseURL)
	assert.Nil(t, GetProvider("anthropic"))
}
