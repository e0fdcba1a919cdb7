package provider

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/scout/config"
	openai_provider "github.com/mohammad-safakhou/scout/provider/openai"
)

// Usage reports token consumption for a single completion call.
type Usage = openai_provider.Usage

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Generate runs a plain chat completion and returns the text content.
	Generate(ctx context.Context, system, user string) (string, Usage, error)

	// GenerateJSON runs a completion in JSON mode; callers parse the result.
	GenerateJSON(ctx context.Context, system, user string) (string, Usage, error)

	// CreateEmbedding generates vector embeddings for the given texts.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the configured completion model name.
	Model() string
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMProvider) (Provider, error) {
	switch cfg.Type {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not set")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case "anthropic":
		return nil, errors.New("anthropic client not implemented yet")
	case "gemini":
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
