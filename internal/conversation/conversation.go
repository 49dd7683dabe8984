package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Keyring-Network/linkchat/internal/store"
)

const (
	DefaultCollection = "conversations"
	DefaultTimeout    = 5 * time.Second
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Sources []string `json:"sources,omitempty"`
}

// Store persists each conversation as one serialized message list. Reads and
// writes are not transactional, so two concurrent saves for the same id can
// lose one of the updates.
type Store struct {
	docs       store.Store
	collection string
	timeout    time.Duration
}

// NewStore keeps conversations in collection. Each backend round trip is
// bounded by timeout; zero selects DefaultTimeout.
func NewStore(docs store.Store, collection string, timeout time.Duration) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{docs: docs, collection: collection, timeout: timeout}
}

// Load returns the stored history for id, or an empty list if the
// conversation has never been written.
func (s *Store) Load(ctx context.Context, id string) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.docs.GetDocument(ctx, s.collection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	messages, err := Decode(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return messages, nil
}

func (s *Store) Save(ctx context.Context, id string, messages []Message) error {
	data, err := Encode(messages)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", id, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := store.Put(ctx, s.docs, store.Document{Collection: s.collection, ID: id, Data: data}); err != nil {
		return fmt.Errorf("save conversation %s: %w", id, err)
	}
	return nil
}

func Encode(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(messages)
}

func Decode(data []byte) ([]Message, error) {
	if len(data) == 0 {
		return []Message{}, nil
	}
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}
