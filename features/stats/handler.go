package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"docforge/internal/middleware"
)

// JobCounter reports how many ingestion jobs are currently running.
type JobCounter interface {
	Active() int
}

// CacheStats reports cumulative embedding cache counters.
type CacheStats interface {
	Stats() (hits, misses uint64)
}

// ContextLister enumerates persisted context records for a user.
type ContextLister interface {
	Count(user string) (int, error)
}

type Handler struct {
	jobs  JobCounter
	cache CacheStats
	store ContextLister
}

func NewHandler(jobs JobCounter, cache CacheStats, store ContextLister) *Handler {
	return &Handler{jobs: jobs, cache: cache, store: store}
}

type StatsResponse struct {
	ActiveJobs   int    `json:"active_jobs"`
	CacheHits    uint64 `json:"cache_hits"`
	CacheMisses  uint64 `json:"cache_misses"`
	ContextFiles int    `json:"context_files"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	user := r.Header.Get("X-User")
	if user == "" {
		user = "unknown"
	}

	count, err := h.store.Count(user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count context files", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count context files", http.StatusInternalServerError)
		return
	}

	hits, misses := h.cache.Stats()
	resp := StatsResponse{
		ActiveJobs:   h.jobs.Active(),
		CacheHits:    hits,
		CacheMisses:  misses,
		ContextFiles: count,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
