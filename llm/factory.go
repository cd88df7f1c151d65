package llm

import (
	"context"
	"fmt"

	"github.com/briefops/research-agent/config"
)

// New builds the Client selected by cfg.Provider. Cloud providers fail here,
// loudly, when their API key is missing; a misconfigured credential should
// stop boot rather than surface as a runtime completion error.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaRoutingModel, cfg.OllamaAnalysisModel), nil

	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("%w: openrouter requires llm.openrouter_api_key", ErrMissingCredentials)
		}
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel), nil

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: anthropic requires llm.anthropic_api_key", ErrMissingCredentials)
		}
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil

	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: gemini requires llm.gemini_api_key", ErrMissingCredentials)
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)

	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want ollama, openrouter, anthropic, or gemini)", cfg.Provider)
	}
}
