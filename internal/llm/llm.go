// Package llm generates answers from prompts using a chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names accepted by New
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderStatic    = "static"
)

// Defaults applied by New
const (
	DefaultOpenAIModel    = "gpt-4"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultMaxTokens      = 1000
)

var (
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrMissingAPIKey   = errors.New("API key is required")
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrEmptyCompletion = errors.New("model returned no content")
)

// Generator produces a completion for a single user prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a Generator
type Config struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
	BaseURL     string // Optional API endpoint override
}

// New builds the Generator named by cfg.Provider
func New(cfg Config) (Generator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderStatic:
		return &Static{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}
