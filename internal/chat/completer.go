package chat

import (
	"context"

	"github.com/Keyring-Network/linkchat/internal/llm"
)

// FallbackReply replaces a completion that came back without any text.
const FallbackReply = "Sorry, I couldn't generate a response."

type Completer struct {
	provider llm.Provider
	opts     llm.Options
}

func NewCompleter(provider llm.Provider, opts llm.Options) *Completer {
	return &Completer{provider: provider, opts: opts}
}

// Complete asks the model to answer question from pageContext. Provider errors
// are returned as is; there is no retry.
func (c *Completer) Complete(ctx context.Context, question string, pageContext string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemInstruction},
		{Role: llm.RoleUser, Content: userPrompt(question, pageContext)},
	}
	reply, err := c.provider.Generate(ctx, messages, c.opts)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return FallbackReply, nil
	}
	return reply, nil
}
