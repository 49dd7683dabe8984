package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/Keyring-Network/linkchat/internal/conversation"
	"github.com/Keyring-Network/linkchat/internal/events"
)

type MockChat struct {
	mock.Mock
}

func (m *MockChat) History(ctx context.Context, id string) ([]conversation.Message, error) {
	args := m.Called(ctx, id)
	var result []conversation.Message
	if value := args.Get(0); value != nil {
		result = value.([]conversation.Message)
	}
	return result, args.Error(1)
}

func (m *MockChat) Reply(ctx context.Context, id string, message string) (conversation.Message, error) {
	args := m.Called(ctx, id, message)
	return args.Get(0).(conversation.Message), args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Subscribe(ctx context.Context, conversationID string) <-chan events.ConversationEvent {
	args := m.Called(ctx, conversationID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.ConversationEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.ConversationEvent); ok {
			return ch
		}
	}
	return nil
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	server := NewServer(opts)
	return httptest.NewServer(server.Router())
}
