package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"docforge/internal/extract"
)

// JobControl is the slice of the job registry the handler needs.
type JobControl interface {
	Create() string
	Cancel(id string) bool
	Done(id string)
}

type Handler struct {
	service         *Service
	jobs            JobControl
	maxUploadBytes  int64
	streamThreshold int64
}

func NewHandler(service *Service, jobs JobControl, maxUploadBytes, streamThreshold int64) *Handler {
	return &Handler{
		service:         service,
		jobs:            jobs,
		maxUploadBytes:  maxUploadBytes,
		streamThreshold: streamThreshold,
	}
}

type uploadResult struct {
	Success             bool   `json:"success"`
	FileName            string `json:"fileName"`
	FileType            string `json:"fileType"`
	FileSize            int64  `json:"fileSize"`
	CharacterCount      int    `json:"characterCount"`
	ExtractedText       string `json:"extractedText"`
	ChunkCount          int    `json:"chunkCount"`
	EmbeddingsCount     int    `json:"embeddingsCount"`
	EmbeddingsGenerated bool   `json:"embeddingsGenerated"`
	ContextSaved        bool   `json:"contextSaved"`
	ContextPath         string `json:"contextPath,omitempty"`
	Warning             string `json:"warning,omitempty"`
}

// Upload handles POST /documents. Large PDFs with streamProgress=true get a
// server-sent event stream carrying per-page progress; everything else gets a
// single JSON response.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Il file è troppo grande. Limite massimo: 200MB.", "GENERAL_ERROR", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Nessun file caricato", "GENERAL_ERROR", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeKind := header.Header.Get("Content-Type")
	if !extract.Supported(mimeKind) {
		h.writeError(w, fmt.Sprintf("Tipo di file non supportato: %s", mimeKind), "UNSUPPORTED_TYPE", http.StatusBadRequest)
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, "Unable to read uploaded file", "GENERAL_ERROR", http.StatusBadRequest)
		return
	}

	doc := extract.Document{Raw: raw, MimeKind: mimeKind, FileName: header.Filename}
	user := userFrom(r)
	persist := r.FormValue("contextMode") == "persist" && user != "unknown"

	slog.InfoContext(r.Context(), "processing upload",
		"file", doc.FileName, "type", mimeKind, "size", len(raw), "persist", persist)

	if r.FormValue("streamProgress") == "true" && mimeKind == "application/pdf" && int64(len(raw)) > h.streamThreshold {
		h.uploadStreaming(w, r, doc, user, persist)
		return
	}

	outcome, err := h.service.Ingest(r.Context(), doc, "", user, persist, nil)
	if err != nil {
		h.writeExtractionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resultFrom(outcome))
}

// uploadStreaming processes the document under a cancellable job and reports
// progress as SSE frames. The job id is exposed in a response header before
// the stream starts so the client can cancel mid-flight.
func (h *Handler) uploadStreaming(w http.ResponseWriter, r *http.Request, doc extract.Document, user string, persist bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "streaming not supported", "GENERAL_ERROR", http.StatusInternalServerError)
		return
	}

	jobID := h.jobs.Create()
	defer h.jobs.Done(jobID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Job-ID", jobID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frame := func(payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Error("failed to marshal sse frame", "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	onProgress := func(p extract.Progress) {
		frame(map[string]interface{}{
			"type":        "progress",
			"currentPage": p.CurrentPage,
			"totalPages":  p.TotalPages,
			"status":      p.Status,
		})
	}

	outcome, err := h.service.Ingest(r.Context(), doc, jobID, user, persist, onProgress)
	if err != nil {
		if extract.KindOf(err) == extract.KindCancelled {
			frame(map[string]interface{}{"type": "cancelled", "jobId": jobID})
			return
		}
		message, errorType, _ := classifyError(err)
		frame(map[string]interface{}{"type": "error", "error": message, "errorType": errorType})
		return
	}
	frame(map[string]interface{}{"type": "complete", "result": resultFrom(outcome)})
}

// Cancel handles POST /jobs/{id}/cancel. Cancellation is an acknowledgement,
// not a guarantee: the stream reports the actual stop.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.jobs.Cancel(id) {
		h.writeError(w, "job not found", "GENERAL_ERROR", http.StatusNotFound)
		return
	}
	slog.InfoContext(r.Context(), "job cancellation requested", "job_id", id)
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "jobId": id})
}

func resultFrom(o *Outcome) uploadResult {
	return uploadResult{
		Success:             true,
		FileName:            o.FileName,
		FileType:            o.FileType,
		FileSize:            o.FileSize,
		CharacterCount:      o.CharacterCount(),
		ExtractedText:       o.Text,
		ChunkCount:          len(o.Chunks),
		EmbeddingsCount:     len(o.Vectors),
		EmbeddingsGenerated: o.EmbeddingsGenerated,
		ContextSaved:        o.ContextPath != "",
		ContextPath:         o.ContextPath,
		Warning:             o.Warning,
	}
}

func classifyError(err error) (message, errorType string, status int) {
	switch extract.KindOf(err) {
	case extract.KindNoReadablePages:
		return "Nessun testo estratto dal file. Il file potrebbe essere vuoto o corrotto.", "NO_TEXT", http.StatusBadRequest
	case extract.KindCorrupted, extract.KindOcrFailed:
		return fmt.Sprintf("Errore nell'analisi del PDF: %s", err), "PDF_ERROR", http.StatusInternalServerError
	default:
		return err.Error(), "GENERAL_ERROR", http.StatusInternalServerError
	}
}

func (h *Handler) writeExtractionError(w http.ResponseWriter, err error) {
	message, errorType, status := classifyError(err)
	h.writeError(w, message, errorType, status)
}

func (h *Handler) writeError(w http.ResponseWriter, message, errorType string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message, "errorType": errorType})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func userFrom(r *http.Request) string {
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "unknown"
}
