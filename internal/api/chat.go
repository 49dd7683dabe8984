package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/chat"
	"github.com/Keyring-Network/linkchat/internal/conversation"
)

const (
	errMissingConversationID = "Conversation ID is required"
	errRetrieveConversation  = "Failed to retrieve conversation"
	errProcessRequest        = "An error occurred while processing your request"
	errInvalidRequest        = "invalid request"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type historyResponse struct {
	Messages []conversation.Message `json:"messages"`
}

// conversationID reads the id from the share-link path or the id query
// parameter.
func conversationID(r *http.Request) string {
	if id := strings.TrimSpace(chi.URLParam(r, "id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("id"))
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	id := conversationID(r)
	if id == "" {
		writeError(w, errMissingConversationID, http.StatusBadRequest)
		return
	}
	messages, err := s.chat.History(r.Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrMissingConversationID) {
			writeError(w, errMissingConversationID, http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to load conversation", zap.String("conversation_id", id), zap.Error(err))
		writeError(w, errRetrieveConversation, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSONStatus(w, historyResponse{Messages: messages}, http.StatusOK)
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	req := chatRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidRequest, http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		writeError(w, errMissingConversationID, http.StatusBadRequest)
		return
	}

	reply, err := s.chat.Reply(r.Context(), id, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrMissingConversationID) {
			writeError(w, errMissingConversationID, http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to process chat message", zap.String("conversation_id", id), zap.Error(err))
		writeError(w, errProcessRequest, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, reply, http.StatusOK)
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, map[string]string{"conversationId": uuid.New().String()}, http.StatusCreated)
}
