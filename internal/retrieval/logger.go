package retrieval

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Interaction is one appended query-log record.
type Interaction struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Query     string `json:"query"`
	K         int    `json:"k"`
	Fallback  bool   `json:"fallback"`
}

// QueryLogger appends retrieval interactions to a JSON-lines file. Write
// failures are logged, never surfaced, so audit logging cannot break a
// retrieval.
type QueryLogger struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewQueryLogger(path string) *QueryLogger {
	return &QueryLogger{path: path, now: time.Now}
}

func (l *QueryLogger) Log(user, query string, k int, fallback bool) {
	record := Interaction{
		Timestamp: l.now().UTC().Format(time.RFC3339),
		User:      user,
		Query:     query,
		K:         k,
		Fallback:  fallback,
	}
	line, err := json.Marshal(record)
	if err != nil {
		slog.Error("failed to marshal query log record", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		slog.Error("failed to create query log directory", "error", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open query log", "error", err, "path", l.path)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Error("failed to write query log", "error", err)
	}
}
