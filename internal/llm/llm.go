// Package llm builds chat language models for the configured providers.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/openai"
)

// Model turns a fully rendered prompt into answer text.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are the per-call generation parameters.
type Params struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Provider identifies the API behind a model id.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// DetectProvider maps a model id to its provider by prefix. Unknown ids are
// sent to OpenAI.
func DetectProvider(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude-"):
		return ProviderAnthropic
	case strings.HasPrefix(m, "gemini-"):
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

// Completer is the OpenAI chat capability.
type Completer interface {
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

type Config struct {
	AnthropicAPIKey string
	GeminiAPIKey    string
	// DefaultMaxTokens applies when Params.MaxTokens is zero.
	DefaultMaxTokens int
}

// Factory creates a Model per call so settings changes apply to the next
// question without restarting.
type Factory struct {
	cfg    Config
	openai Completer
}

// NewFactory creates a factory. openaiChat may be nil when no OpenAI key is
// configured.
func NewFactory(cfg Config, openaiChat Completer) *Factory {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 1024
	}
	return &Factory{cfg: cfg, openai: openaiChat}
}

// New returns a model for p.Model. A provider without credentials yields a
// CONFIGURATION_ERROR.
func (f *Factory) New(ctx context.Context, p Params) (Model, error) {
	if p.Model == "" {
		return nil, domain.ErrModelNotConfigured.Wrap(fmt.Errorf("model name is empty"))
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = f.cfg.DefaultMaxTokens
	}

	switch DetectProvider(p.Model) {
	case ProviderAnthropic:
		if f.cfg.AnthropicAPIKey == "" {
			return nil, domain.ErrModelNotConfigured.Wrap(fmt.Errorf("anthropic api key missing for %s", p.Model))
		}
		return newClaudeModel(f.cfg.AnthropicAPIKey, p), nil
	case ProviderGemini:
		if f.cfg.GeminiAPIKey == "" {
			return nil, domain.ErrModelNotConfigured.Wrap(fmt.Errorf("gemini api key missing for %s", p.Model))
		}
		return newGeminiModel(ctx, f.cfg.GeminiAPIKey, p)
	default:
		if f.openai == nil {
			return nil, domain.ErrModelNotConfigured.Wrap(fmt.Errorf("openai api key missing for %s", p.Model))
		}
		return &openAIModel{chat: f.openai, params: p}, nil
	}
}
