package retrieve

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Retrieve handles POST /retrieve.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Files []File `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(w, "query is required", http.StatusBadRequest)
		return
	}

	user := r.Header.Get("X-User")
	if user == "" {
		user = "unknown"
	}

	resp, err := h.service.Retrieve(r.Context(), user, req.Query, req.Files)
	if err != nil {
		slog.ErrorContext(r.Context(), "retrieval failed", "error", err)
		h.writeError(w, "retrieval failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
