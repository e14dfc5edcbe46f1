package ingest

import (
	"context"
	"log/slog"

	"docforge/internal/contextstore"
	"docforge/internal/embed"
	"docforge/internal/extract"
	"docforge/internal/text"
)

// Extractor is the extraction chain the service drives.
type Extractor interface {
	Extract(ctx context.Context, doc extract.Document, jobID string, onProgress extract.ProgressFunc) (*extract.Result, error)
}

// Storer persists ingested documents when the caller asks for persistence.
type Storer interface {
	Save(user string, record contextstore.Record) (string, error)
}

// Outcome is the full result of one ingestion.
type Outcome struct {
	FileName            string
	FileType            string
	FileSize            int64
	Text                string
	Strategy            string
	Warning             string
	Chunks              []text.Segment
	Vectors             [][]float32
	EmbeddingsGenerated bool
	ContextPath         string
}

type Service struct {
	extractor Extractor
	embedder  embed.Client
	store     Storer
}

func NewService(extractor Extractor, embedder embed.Client, store Storer) *Service {
	return &Service{extractor: extractor, embedder: embedder, store: store}
}

// Ingest runs the pipeline: extract, classify, chunk, embed, optionally
// persist. Embedding is best-effort: once extraction succeeded the ingestion
// succeeds even when the embedding service is down, and the outcome records
// that no vectors were generated.
func (s *Service) Ingest(ctx context.Context, doc extract.Document, jobID, user string, persist bool, onProgress extract.ProgressFunc) (*Outcome, error) {
	result, err := s.extractor.Extract(ctx, doc, jobID, onProgress)
	if err != nil {
		return nil, err
	}

	contentType := text.Classify(result.Text, doc.FileName)
	policy := text.PolicyFor(contentType)
	chunks := text.Chunk(result.Text, doc.FileName, policy)
	slog.InfoContext(ctx, "document chunked",
		"file", doc.FileName, "strategy", result.Strategy, "chunks", len(chunks), "content_type", contentType)

	outcome := &Outcome{
		FileName: doc.FileName,
		FileType: doc.MimeKind,
		FileSize: int64(len(doc.Raw)),
		Text:     result.Text,
		Strategy: result.Strategy,
		Warning:  result.Warning,
		Chunks:   chunks,
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		slog.WarnContext(ctx, "embedding generation failed, continuing without vectors",
			"file", doc.FileName, "error", err)
	} else {
		outcome.Vectors = vectors
		outcome.EmbeddingsGenerated = len(vectors) > 0
	}

	if persist {
		path, err := s.store.Save(user, s.record(outcome))
		if err != nil {
			slog.ErrorContext(ctx, "failed to persist context record", "file", doc.FileName, "error", err)
		} else {
			outcome.ContextPath = path
		}
	}
	return outcome, nil
}

func (s *Service) record(o *Outcome) contextstore.Record {
	chunked := make([]string, len(o.Chunks))
	for i, c := range o.Chunks {
		chunked[i] = c.Text
	}
	var vectors []contextstore.Vector
	if o.EmbeddingsGenerated {
		vectors = make([]contextstore.Vector, len(o.Vectors))
		for i, v := range o.Vectors {
			vectors[i] = contextstore.Vector{Chunk: chunked[i], Embedding: v, Index: i}
		}
	}
	return contextstore.Record{
		FileName:            o.FileName,
		FileType:            o.FileType,
		FileSize:            o.FileSize,
		Chunked:             chunked,
		Vectors:             vectors,
		EmbeddingsGenerated: o.EmbeddingsGenerated,
	}
}

// CharacterCount is the size of the extracted text in bytes as the API
// reports it.
func (o *Outcome) CharacterCount() int {
	return len(o.Text)
}
