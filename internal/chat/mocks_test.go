package chat

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Keyring-Network/linkchat/internal/conversation"
	"github.com/Keyring-Network/linkchat/internal/events"
	"github.com/Keyring-Network/linkchat/internal/llm"
	"github.com/Keyring-Network/linkchat/internal/scrape"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchAll(ctx context.Context, urls []string) []scrape.Result {
	args := m.Called(ctx, urls)
	var result []scrape.Result
	if value := args.Get(0); value != nil {
		result = value.([]scrape.Result)
	}
	return result
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Load(ctx context.Context, id string) ([]conversation.Message, error) {
	args := m.Called(ctx, id)
	var result []conversation.Message
	if value := args.Get(0); value != nil {
		result = value.([]conversation.Message)
	}
	return result, args.Error(1)
}

func (m *MockHistory) Save(ctx context.Context, id string, messages []conversation.Message) error {
	args := m.Called(ctx, id, messages)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(event events.ConversationEvent) {
	m.Called(event)
}
