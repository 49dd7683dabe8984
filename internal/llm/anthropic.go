package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type AnthropicProvider struct {
	client anthropic.Client
	model  string
	apiKey string
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		apiKey: cfg.APIKey,
	}
}

// Generate sends system messages as the system prompt and the rest as the
// conversation, then joins the text blocks of the reply.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if p.model == "" {
		return "", ErrMissingModel
	}

	var system []anthropic.TextBlockParam
	conv := make([]anthropic.MessageParam, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: message.Content})
		case RoleAssistant:
			conv = append(conv, anthropic.NewAssistantMessage(anthropic.NewTextBlock(message.Content)))
		default:
			conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content)))
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Messages:    conv,
		System:      system,
		Temperature: anthropic.Float(opts.Temperature),
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}
