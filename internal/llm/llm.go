package llm

import (
	"context"
	"fmt"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 60 * time.Second
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling parameters sent with every request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider returns the text of the first completion for messages. An empty
// string with a nil error means the service answered without any text.
type Provider interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

type Config struct {
	Provider         string
	Model            string
	BaseURL          string
	Timeout          time.Duration
	GroqAPIKey       string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	AnthropicAPIKey  string
}

// NewProvider builds the provider named by cfg.Provider. A missing API key
// or model is reported here so a misconfigured server fails at startup.
func NewProvider(cfg Config) (Provider, error) {
	key, err := apiKeyFor(cfg)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingModel)
	}

	switch cfg.Provider {
	case "groq":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  key,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://api.groq.com/openai/v1"),
			Timeout: cfg.Timeout,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  key,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case "openrouter":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  key,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
			Timeout: cfg.Timeout,
		}), nil
	case "langchain":
		return NewLangChainProvider(LangChainConfig{
			APIKey:  key,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  key,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	}
	return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
}

func apiKeyFor(cfg Config) (string, error) {
	switch cfg.Provider {
	case "groq":
		return cfg.GroqAPIKey, nil
	case "openai":
		return cfg.OpenAIAPIKey, nil
	case "openrouter":
		return cfg.OpenRouterAPIKey, nil
	case "langchain":
		return firstNonEmpty(cfg.OpenAIAPIKey, cfg.GroqAPIKey), nil
	case "anthropic":
		return cfg.AnthropicAPIKey, nil
	default:
		return "", ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
