// Package embedding maps review text to fixed-length vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Embedder encodes text into a fixed-length numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Func adapts a plain function to the Embedder interface.
type Func func(ctx context.Context, text string) ([]float64, error)

func (f Func) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider     string // "openai", "gemini" or "none"
	Model        string
	Dimensions   int
	OpenAIAPIKey string
	GeminiAPIKey string
}

// New builds the configured Embedder. Provider "none" (or empty) returns
// nil, and callers persist reviews without vectors.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "openai":
		e, err := NewOpenAI(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gemini":
		e, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
