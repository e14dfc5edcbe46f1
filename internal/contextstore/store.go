// Package contextstore persists ingested documents as JSON records on disk,
// one file per upload, split into per-user directories plus a shared base
// context directory visible to everyone.
package contextstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const baseContextDir = "base-context"

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Vector pairs one chunk with its embedding and ordinal position.
type Vector struct {
	Chunk     string    `json:"chunk"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// Record is the persisted form of one ingested document.
type Record struct {
	FileName            string   `json:"fileName"`
	FileType            string   `json:"fileType"`
	FileSize            int64    `json:"fileSize"`
	Chunked             []string `json:"chunked"`
	Vectors             []Vector `json:"vectors"`
	UploadedAt          string   `json:"uploadedAt"`
	EmbeddingsGenerated bool     `json:"embeddingsGenerated"`
}

// Entry describes a stored record without loading its chunks.
type Entry struct {
	FileName       string `json:"fileName"`
	FileType       string `json:"fileType"`
	FileSize       int64  `json:"fileSize"`
	CharacterCount int    `json:"characterCount"`
	UploadedAt     string `json:"uploadedAt"`
	Path           string `json:"contextPath"`
	IsBaseContext  bool   `json:"isBaseContext"`
}

type Store struct {
	root string
	now  func() time.Time
}

func NewStore(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Save writes the record under the user's directory as
// <unixMillis>_<sanitizedName>.json and returns the path.
func (s *Store) Save(user string, record Record) (string, error) {
	dir := filepath.Join(s.root, sanitize(user))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create context directory: %w", err)
	}

	if record.UploadedAt == "" {
		record.UploadedAt = s.now().UTC().Format(time.RFC3339)
	}
	name := fmt.Sprintf("%d_%s.json", s.now().UnixMilli(), sanitize(record.FileName))
	path := filepath.Join(dir, name)

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write context record: %w", err)
	}
	return path, nil
}

// List returns the user's records plus the shared base context, base context
// first, each list sorted by upload time.
func (s *Store) List(user string) ([]Entry, error) {
	base, err := s.listDir(filepath.Join(s.root, baseContextDir), true)
	if err != nil {
		return nil, err
	}
	own, err := s.listDir(filepath.Join(s.root, sanitize(user)), false)
	if err != nil {
		return nil, err
	}
	return append(base, own...), nil
}

// Count returns how many records List would return for the user.
func (s *Store) Count(user string) (int, error) {
	entries, err := s.List(user)
	return len(entries), err
}

// Load reads one record back, rejecting paths outside the store root.
func (s *Store) Load(path string) (Record, error) {
	var record Record
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return record, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return record, err
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return record, fmt.Errorf("path %q is outside the context store", path)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return record, fmt.Errorf("failed to read context record: %w", err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to parse context record: %w", err)
	}
	return record, nil
}

// Delete removes the user's record matching file name and upload time.
func (s *Store) Delete(user, fileName, uploadedAt string) error {
	entries, err := s.listDir(filepath.Join(s.root, sanitize(user)), false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.FileName == fileName && e.UploadedAt == uploadedAt {
			return os.Remove(e.Path)
		}
	}
	return os.ErrNotExist
}

func (s *Store) listDir(dir string, isBase bool) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read context directory: %w", err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, f.Name())
		record, err := s.Load(path)
		if err != nil {
			slog.Warn("skipping unreadable context record", "path", path, "error", err)
			continue
		}
		count := 0
		for _, chunk := range record.Chunked {
			count += len(chunk)
		}
		entries = append(entries, Entry{
			FileName:       record.FileName,
			FileType:       record.FileType,
			FileSize:       record.FileSize,
			CharacterCount: count,
			UploadedAt:     record.UploadedAt,
			Path:           path,
			IsBaseContext:  isBase,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UploadedAt < entries[j].UploadedAt })
	return entries, nil
}

func sanitize(name string) string {
	return unsafeNameRe.ReplaceAllString(name, "_")
}
