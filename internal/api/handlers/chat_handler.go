package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nahid2887/today/internal/domain/entities"
)

const maxChatBodyBytes = 64 << 10

// Recommender answers chat queries and manages their sessions.
type Recommender interface {
	Recommend(ctx context.Context, req entities.RecommendationRequest) (*entities.RecommendationResult, error)
	ResetSession(ctx context.Context, sessionID string) error
}

// ChatHandler handles conversational recommendation requests
type ChatHandler struct {
	recommender Recommender
}

// NewChatHandler creates a new chat handler
func NewChatHandler(recommender Recommender) *ChatHandler {
	return &ChatHandler{recommender: recommender}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req entities.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.recommender.Recommend(r.Context(), req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// ResetSession handles DELETE /api/sessions/{id}
func (h *ChatHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("id"))
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	if err := h.recommender.ResetSession(r.Context(), sessionID); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
