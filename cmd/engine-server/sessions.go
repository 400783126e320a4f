// cmd/engine-server/sessions.go
package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/orchestrator"
)

// sessionRegistry maps conversation ids to live conversations. Conversations
// are created on first use and live for the process lifetime.
type sessionRegistry struct {
	streamer orchestrator.Streamer
	cache    orchestrator.RouteCacher
	matcher  orchestrator.PhraseMatcher
	logger   logger.Logger

	mu            sync.Mutex
	conversations map[string]*orchestrator.Conversation
}

func newSessionRegistry(streamer orchestrator.Streamer, cache orchestrator.RouteCacher, matcher orchestrator.PhraseMatcher, log logger.Logger) *sessionRegistry {
	return &sessionRegistry{
		streamer:      streamer,
		cache:         cache,
		matcher:       matcher,
		logger:        log,
		conversations: make(map[string]*orchestrator.Conversation),
	}
}

func (s *sessionRegistry) conversation(id string) *orchestrator.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if conv, ok := s.conversations[id]; ok {
			return conv
		}
	}
	conv := orchestrator.NewConversation(s.streamer, s.logger,
		orchestrator.WithRouteCache(s.cache),
		orchestrator.WithPhraseMatcher(s.matcher))
	s.conversations[conv.ID()] = conv
	return conv
}

type turnRequestBody struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type turnResponseBody struct {
	ConversationID string                   `json:"conversationId"`
	Result         *orchestrator.TurnResult `json:"result"`
}

// handleTurn runs one conversation turn to its terminal outcome.
func (s *sessionRegistry) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body turnRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	conv := s.conversation(body.ConversationID)
	result, err := conv.HandleMessage(r.Context(), body.Message)
	if err != nil {
		s.logger.Error("turn failed", map[string]interface{}{
			"conversationId": conv.ID(),
			"error":          err.Error(),
		})
		http.Error(w, "turn failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(turnResponseBody{
		ConversationID: conv.ID(),
		Result:         result,
	})
}
