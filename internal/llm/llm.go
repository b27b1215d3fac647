// Package llm implements the language-understanding and transcription backends.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/nlu"
)

// LookupEnv resolves credential variables; os.LookupEnv in production.
type LookupEnv func(string) (string, bool)

// APIKey reads the credential named by envName. Missing credentials are an error.
func APIKey(lookup LookupEnv, envName string) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if envName == "" {
		return "", fmt.Errorf("no credential environment variable configured")
	}
	value, ok := lookup(envName)
	if !ok || value == "" {
		return "", fmt.Errorf("credential environment variable %s is not set", envName)
	}
	return value, nil
}

// New builds the configured language service.
func New(ctx context.Context, cfg config.LLMConfig, lookup LookupEnv) (nlu.Service, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		key, err := APIKey(lookup, cfg.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		return NewGemini(ctx, GeminiOptions{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case config.ProviderOpenAI:
		key, err := APIKey(lookup, cfg.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		return NewOpenAI(ctx, ChatOptions{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case config.ProviderOllama:
		return NewOllama(ctx, ChatOptions{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

// NewTranscriber builds the Gemini speech transcriber.
func NewTranscriber(ctx context.Context, cfg config.ASRConfig, baseURL string, lookup LookupEnv) (*Gemini, error) {
	key, err := APIKey(lookup, cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("asr: %w", err)
	}
	return NewGemini(ctx, GeminiOptions{
		APIKey:       key,
		BaseURL:      baseURL,
		Model:        cfg.Model,
		LanguageCode: cfg.LanguageCode,
	})
}
