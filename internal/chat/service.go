package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/conversation"
	"github.com/Keyring-Network/linkchat/internal/events"
	"github.com/Keyring-Network/linkchat/internal/scrape"
)

var ErrMissingConversationID = errors.New("conversation id is required")

type History interface {
	Load(ctx context.Context, id string) ([]conversation.Message, error)
	Save(ctx context.Context, id string, messages []conversation.Message) error
}

type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) []scrape.Result
}

type Publisher interface {
	Publish(event events.ConversationEvent)
}

type Service struct {
	history   History
	fetcher   Fetcher
	completer *Completer
	publisher Publisher
	logger    *zap.Logger
}

type ServiceOptions struct {
	History   History
	Fetcher   Fetcher
	Completer *Completer
	// Publisher is optional.
	Publisher Publisher
	Logger    *zap.Logger
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		history:   opts.History,
		fetcher:   opts.Fetcher,
		completer: opts.Completer,
		publisher: opts.Publisher,
		logger:    logger,
	}
}

func (s *Service) History(ctx context.Context, id string) ([]conversation.Message, error) {
	if id == "" {
		return nil, ErrMissingConversationID
	}
	return s.history.Load(ctx, id)
}

// Reply runs one chat turn: it scrapes the URLs in message, asks the model
// with the scraped context and appends both turns to the conversation.
// Nothing is saved when the model call fails.
func (s *Service) Reply(ctx context.Context, id string, message string) (conversation.Message, error) {
	if id == "" {
		return conversation.Message{}, ErrMissingConversationID
	}
	history, err := s.history.Load(ctx, id)
	if err != nil {
		return conversation.Message{}, err
	}
	userMessage := conversation.Message{Role: conversation.RoleUser, Content: message}
	history = append(history, userMessage)

	var results []scrape.Result
	if urls := scrape.ExtractURLs(message); len(urls) > 0 {
		results = s.fetcher.FetchAll(ctx, urls)
		s.logger.Info("scraped urls",
			zap.String("conversation_id", id),
			zap.Int("requested", len(urls)),
			zap.Int("fetched", len(results)),
		)
	}

	reply, err := s.completer.Complete(ctx, message, AssembleContext(results))
	if err != nil {
		return conversation.Message{}, fmt.Errorf("generate reply: %w", err)
	}
	assistantMessage := conversation.Message{
		Role:    conversation.RoleAssistant,
		Content: reply,
		Sources: sourceURLs(results),
	}
	history = append(history, assistantMessage)

	if err := s.history.Save(ctx, id, history); err != nil {
		return conversation.Message{}, err
	}

	if s.publisher != nil {
		s.publisher.Publish(events.MessageEvent(id, len(history)-2, userMessage))
		s.publisher.Publish(events.MessageEvent(id, len(history)-1, assistantMessage))
	}
	return assistantMessage, nil
}
