package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type LangChainConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// LangChainProvider drives an OpenAI-compatible endpoint through langchaingo.
type LangChainProvider struct {
	model llms.Model
}

func NewLangChainProvider(cfg LangChainConfig) (*LangChainProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &LangChainProvider{model: model}, nil
}

func (p *LangChainProvider) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, message := range messages {
		content = append(content, llms.TextParts(langChainRole(message.Role), message.Content))
	}

	callOptions := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(opts.MaxTokens))
	}
	resp, err := p.model.GenerateContent(ctx, content, callOptions...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func langChainRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
