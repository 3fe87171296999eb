package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	GeminiAPIKey string
	GeminiModel  string

	// Getters let runtime settings swap the Ollama server or model.
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewJobExtractor creates a JobExtractor based on the config.
// "auto" prefers Ollama and falls back to Gemini when a key is present.
func NewJobExtractor(ctx context.Context, cfg Config, logger *zap.Logger) (JobExtractor, error) {
	getBaseURL, getModel := cfg.GetOllamaBaseURL, cfg.GetOllamaModel
	if getBaseURL == nil {
		getBaseURL = func() string { return "http://127.0.0.1:11434" }
	}
	if getModel == nil {
		getModel = func() string { return "llama3.1:8b" }
	}
	ollamaExtractor := NewOllamaExtractorWithGetters(getBaseURL, getModel)

	switch cfg.Provider {
	case ProviderGemini:
		gemini, err := NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return NewFallbackExtractor(gemini, ollamaExtractor, logger), nil

	case ProviderOllama:
		return ollamaExtractor, nil

	case ProviderAuto, "":
		if cfg.GeminiAPIKey == "" {
			return ollamaExtractor, nil
		}
		gemini, err := NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return NewFallbackExtractor(ollamaExtractor, gemini, logger), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}
