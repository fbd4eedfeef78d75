package ailink

import (
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/ailink/driver"
	"github.com/quizai/quizai/internal/ailink/driver/gemini"
	"github.com/quizai/quizai/internal/ailink/driver/openai"
)

// ResolvedProvider is a ready-to-use driver plus the model it should run.
type ResolvedProvider struct {
	Provider string
	Driver   driver.Driver
	Model    string
	BaseURL  string
}

// Resolve builds the driver selected by cfg.Provider.
func Resolve(cfg Config) (*ResolvedProvider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "gemini"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ailink.api_key is required for provider %q", provider)
	}

	switch provider {
	case "gemini":
		client := gemini.NewClient(cfg.BaseURL, cfg.APIKey)
		client.Timeout = cfg.Timeout
		return &ResolvedProvider{
			Provider: provider,
			Driver:   client,
			Model:    resolveModel(cfg.Model, gemini.DefaultModel),
			BaseURL:  client.BaseURL,
		}, nil
	case "openai":
		client := openai.NewClient(cfg.BaseURL, cfg.APIKey)
		client.Timeout = cfg.Timeout
		return &ResolvedProvider{
			Provider: provider,
			Driver:   client,
			Model:    resolveModel(cfg.Model, openai.DefaultModel),
			BaseURL:  client.BaseURL,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported ailink.provider %q", provider)
	}
}

func resolveModel(configured, fallback string) string {
	if model := strings.TrimSpace(configured); model != "" {
		return model
	}
	return fallback
}
