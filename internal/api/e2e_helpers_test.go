package api

import (
	"context"
	"sync"

	"github.com/Keyring-Network/linkchat/internal/llm"
	"github.com/Keyring-Network/linkchat/internal/scrape"
)

var testLLMOptions = llm.Options{Temperature: llm.DefaultTemperature, MaxTokens: llm.DefaultMaxTokens}

type stubProvider struct {
	mu         sync.Mutex
	reply      string
	lastPrompt string
}

func (p *stubProvider) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(messages) > 0 {
		p.lastPrompt = messages[len(messages)-1].Content
	}
	return p.reply, nil
}

func newStaticFetcher() *scrape.Fetcher {
	return scrape.NewFetcher(scrape.Options{})
}
