package llm

import (
	"fmt"

	"github.com/sant0-9/promptforge/internal/config"
)

// NewProvider creates a provider from config
func NewProvider(cfg *config.Config) (Provider, error) {
	info := config.GetProvider(cfg.Provider)
	if info == nil {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = info.BaseURL
	}

	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(baseURL, cfg.Model), nil

	case "custom":
		if baseURL == "" {
			return nil, fmt.Errorf("custom provider requires base_url")
		}
		return NewOpenAIProvider("custom", baseURL, cfg.APIKey, cfg.Model), nil

	default:
		if info.NeedsAPIKey && cfg.APIKey == "" {
			return nil, fmt.Errorf("%s requires an API key", cfg.Provider)
		}
		return NewOpenAIProvider(cfg.Provider, baseURL, cfg.APIKey, cfg.Model), nil
	}
}
