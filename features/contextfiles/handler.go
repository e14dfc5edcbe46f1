// Package contextfiles exposes the persisted context records of a user,
// including the shared base context.
package contextfiles

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"docforge/internal/contextstore"
)

type Store interface {
	List(user string) ([]contextstore.Entry, error)
	Delete(user, fileName, uploadedAt string) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// List handles GET /context-files.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(userFrom(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list context files", "error", err)
		h.writeError(w, "failed to list context files", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []contextstore.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"files": entries}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Delete handles DELETE /context-files. Base context is shared and cannot be
// deleted through this endpoint.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		UploadedAt string `json:"uploadedAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.UploadedAt == "" {
		h.writeError(w, "name and uploadedAt are required", http.StatusBadRequest)
		return
	}

	user := userFrom(r)
	if user == "unknown" {
		h.writeError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	if err := h.store.Delete(user, req.Name, req.UploadedAt); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.writeError(w, "file not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete context file", "error", err)
		h.writeError(w, "failed to delete context file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{"success": true}); err != nil {
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

func userFrom(r *http.Request) string {
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "unknown"
}
