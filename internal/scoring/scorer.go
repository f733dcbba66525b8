// Package scoring connects to the external service that evaluates support
// interactions. The service is a black box: it takes a prompt and returns
// free text.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/supportaudit/internal/config"
	"github.com/fentz26/supportaudit/internal/scoring/gemini"
	"github.com/fentz26/supportaudit/internal/scoring/ollama"
)

// ErrNotConfigured is returned by an Unconfigured scorer.
var ErrNotConfigured = errors.New("scoring service not configured")

// Scorer sends a prompt to the scoring service and returns its raw reply.
type Scorer interface {
	Name() string
	Score(ctx context.Context, prompt string) (string, error)
}

// Unconfigured is the scorer used when no credentials are available.
type Unconfigured struct {
	// Provider is the provider that was requested, if any.
	Provider string
}

// Name implements Scorer.
func (u Unconfigured) Name() string {
	if u.Provider == "" {
		return config.ProviderNone
	}
	return u.Provider
}

// Score always fails with ErrNotConfigured.
func (u Unconfigured) Score(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// IsConfigured reports whether s can reach a scoring service.
func IsConfigured(s Scorer) bool {
	if s == nil {
		return false
	}
	switch s.(type) {
	case Unconfigured, *Unconfigured:
		return false
	}
	return true
}

// New builds the scorer selected by cfg. Missing credentials are not an
// error: they yield an Unconfigured scorer.
func New(ctx context.Context, cfg config.ScoringConfig) (Scorer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case config.ProviderGemini:
		key := strings.TrimSpace(cfg.Gemini.APIKey)
		if key == "" {
			return Unconfigured{Provider: provider}, nil
		}
		opts := []gemini.Option{}
		if cfg.Gemini.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Gemini.Model))
		}
		return gemini.New(ctx, key, opts...)

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithAPIKey(cfg.Ollama.APIKey)}
		if cfg.Ollama.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Ollama.Model))
		}
		if cfg.Ollama.BaseURL != "" {
			opts = append(opts, ollama.WithBaseURL(cfg.Ollama.BaseURL))
		}
		return ollama.New(opts...)

	case config.ProviderNone, "":
		return Unconfigured{}, nil
	}

	return nil, fmt.Errorf("unsupported scoring provider %q (use gemini, ollama, or none)", cfg.Provider)
}
