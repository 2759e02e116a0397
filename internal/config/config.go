package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "promptforge"

type Config struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url,omitempty"`

	Temperature     float64       `yaml:"temperature"`
	ReasoningEffort string        `yaml:"reasoning_effort"`
	ContextSize     int           `yaml:"context_size"`
	HistoryLimit    int           `yaml:"history_limit"`
	ThinkingTimeout time.Duration `yaml:"thinking_timeout"`
	LoopThreshold   int           `yaml:"loop_threshold"`
	LoopWindow      int           `yaml:"loop_window"`

	// Maker routes every user turn through the four-role pipeline.
	Maker bool `yaml:"maker"`

	Retrieval RetrievalConfig `yaml:"retrieval"`

	DataDir  string `yaml:"data_dir,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// RetrievalConfig tunes chunking and scoring of uploaded sources.
type RetrievalConfig struct {
	ChunkSize       int     `yaml:"chunk_size"`
	Overlap         int     `yaml:"overlap"`
	Lookback        int     `yaml:"lookback"`
	MinChunk        int     `yaml:"min_chunk"`
	TopK            int     `yaml:"top_k"`
	MinScore        float64 `yaml:"min_score"`
	FallbackDocs    int     `yaml:"fallback_docs"`
	FallbackPreview int     `yaml:"fallback_preview"`
}

// Reasoning effort levels.
const (
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
)

func DefaultRetrieval() RetrievalConfig {
	return RetrievalConfig{
		ChunkSize:       2000,
		Overlap:         400,
		Lookback:        300,
		MinChunk:        50,
		TopK:            10,
		MinScore:        5,
		FallbackDocs:    3,
		FallbackPreview: 1000,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Provider:        "ollama",
		Model:           "qwen3:8b",
		BaseURL:         "http://localhost:11434",
		Temperature:     0.25,
		ReasoningEffort: EffortMedium,
		ContextSize:     65536,
		HistoryLimit:    30,
		ThinkingTimeout: 120 * time.Second,
		LoopThreshold:   3,
		LoopWindow:      50,
		Retrieval:       DefaultRetrieval(),
		LogLevel:        "info",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if GetProvider(c.Provider) == nil {
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch c.ReasoningEffort {
	case EffortLow, EffortMedium, EffortHigh:
	default:
		return fmt.Errorf("reasoning_effort must be low, medium or high, got %q", c.ReasoningEffort)
	}
	if c.HistoryLimit < 2 {
		return fmt.Errorf("history_limit must be at least 2")
	}
	r := c.Retrieval
	if r.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive")
	}
	if r.Overlap < 0 || r.Overlap >= r.ChunkSize {
		return fmt.Errorf("retrieval.overlap must be in [0, chunk_size)")
	}
	if r.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	return nil
}

// fillDefaults backfills zero values left by older config files.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.ReasoningEffort == "" {
		c.ReasoningEffort = d.ReasoningEffort
	}
	if c.ContextSize == 0 {
		c.ContextSize = d.ContextSize
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.ThinkingTimeout == 0 {
		c.ThinkingTimeout = d.ThinkingTimeout
	}
	if c.LoopThreshold == 0 {
		c.LoopThreshold = d.LoopThreshold
	}
	if c.LoopWindow == 0 {
		c.LoopWindow = d.LoopWindow
	}
	if c.Retrieval == (RetrievalConfig{}) {
		c.Retrieval = d.Retrieval
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ResolveDataDir returns the directory holding the database and logs.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	return ConfigDir()
}

func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the default config file. A missing file yields (nil, nil).
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a config from an explicit path. A missing file yields (nil, nil).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()

	return &cfg, nil
}

func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
