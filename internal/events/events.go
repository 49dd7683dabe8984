package events

import (
	"context"
	"sync"
	"time"

	"github.com/Keyring-Network/linkchat/internal/conversation"
)

const (
	TypeMessage = "message"

	streamBuffer = 16
)

// ConversationEvent announces a message appended to a conversation.
// Index is the message's position in the stored history.
type ConversationEvent struct {
	ConversationID string               `json:"conversation_id"`
	Type           string               `json:"type"`
	Index          int                  `json:"index"`
	Ts             string               `json:"ts"`
	Message        conversation.Message `json:"message"`
}

func MessageEvent(conversationID string, index int, message conversation.Message) ConversationEvent {
	return ConversationEvent{
		ConversationID: conversationID,
		Type:           TypeMessage,
		Index:          index,
		Ts:             time.Now().UTC().Format(time.RFC3339Nano),
		Message:        message,
	}
}

type stream struct {
	conversationID string
	ch             chan ConversationEvent
}

// Broker fans conversation events out to the open streams of that
// conversation. Delivery never blocks the publisher: a stream whose buffer
// is full misses the event.
//
// Streams are only closed under the write lock and events are only sent
// under the read lock, so a viewer leaving never races a publish.
type Broker struct {
	mu      sync.RWMutex
	streams map[string]map[*stream]struct{}
}

func NewBroker() *Broker {
	return &Broker{streams: map[string]map[*stream]struct{}{}}
}

// Subscribe opens a stream for conversationID. The channel is closed once
// ctx is done.
func (b *Broker) Subscribe(ctx context.Context, conversationID string) <-chan ConversationEvent {
	s := &stream{conversationID: conversationID, ch: make(chan ConversationEvent, streamBuffer)}

	b.mu.Lock()
	open := b.streams[conversationID]
	if open == nil {
		open = map[*stream]struct{}{}
		b.streams[conversationID] = open
	}
	open[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(s)
	}()
	return s.ch
}

func (b *Broker) remove(s *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := b.streams[s.conversationID]
	delete(open, s)
	if len(open) == 0 {
		delete(b.streams, s.conversationID)
	}
	close(s.ch)
}

func (b *Broker) Publish(event ConversationEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.streams[event.ConversationID] {
		select {
		case s.ch <- event:
		default:
		}
	}
}

// Subscribers reports how many streams are open for a conversation.
func (b *Broker) Subscribers(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams[conversationID])
}
