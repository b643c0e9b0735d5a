package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"chatbridge/internal/agent"
	"chatbridge/internal/chat"
	"chatbridge/pkg/logging/logging"
)

// ChatHandler holds dependencies for the conversational endpoints.
type ChatHandler struct {
	Service *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{Service: service}
}

// ChatRequest is the body for POST /v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// QueryRequest is the body for POST /v1/query, the stateless variant.
type QueryRequest struct {
	Query           string       `json:"query"`
	History         chat.History `json:"history,omitempty"`
	UseRAG          *bool        `json:"use_rag,omitempty"`
	UseDualResponse bool         `json:"use_dual_response,omitempty"`
}

// Chat handles POST /v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	envelope, err := h.Service.ProcessMessage(ctx, req.SessionID, req.Message)
	if err != nil {
		h.writeGenerationError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// Query handles POST /v1/query.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	mode := chat.ModeAugmented
	switch {
	case req.UseDualResponse:
		mode = chat.ModeDual
	case !useRAG:
		mode = chat.ModePlain
	}

	envelope, err := h.Service.ProcessQuery(ctx, req.Query, req.History, mode)
	if err != nil {
		h.writeGenerationError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// writeGenerationError maps a generation failure to the external status:
// 504 for timed-out invocations, 502 for everything else upstream.
func (h *ChatHandler) writeGenerationError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusBadGateway
	var genErr *agent.GenerationError
	if errors.As(err, &genErr) && genErr.Timeout {
		status = http.StatusGatewayTimeout
	}

	logger.Error("generation failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON sends JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
