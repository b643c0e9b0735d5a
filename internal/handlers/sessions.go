package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatbridge/internal/chat"
)

// SessionHandler exposes session inspection and deletion. The id path
// parameter accepts the ALL_CHATS sentinel for administrative operations.
type SessionHandler struct {
	Service *chat.Service
}

func NewSessionHandler(service *chat.Service) *SessionHandler {
	return &SessionHandler{Service: service}
}

// Get handles GET /v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	histories, err := h.Service.GetSession(id)
	if errors.Is(err, chat.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	writeJSON(w, http.StatusOK, histories)
}

// Delete handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	deleted := h.Service.DeleteSession(id)
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]bool{"deleted": deleted})
}
