package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/events"
)

// streamEvents replays the stored history of a conversation as SSE and then
// follows new messages until the client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := conversationID(r)
	if id == "" {
		writeError(w, errMissingConversationID, http.StatusBadRequest)
		return
	}
	if s.broker == nil {
		http.Error(w, "streaming unavailable", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	// Subscribe before loading so nothing appended in between is missed.
	eventsChan := s.broker.Subscribe(ctx, id)
	stored, err := s.chat.History(ctx, id)
	if err != nil {
		s.logger.Error("failed to load conversation", zap.String("conversation_id", id), zap.Error(err))
		writeError(w, errRetrieveConversation, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for index, message := range stored {
		sendSSE(w, events.MessageEvent(id, index, message))
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			if event.Index < len(stored) {
				continue
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.ConversationEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.ConversationID, event.Index)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
