// Package retrieve serves context retrieval: given a query and chunked files
// it returns the most relevant chunks, formatted for prompt assembly.
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"docforge/internal/embed"
	"docforge/internal/retrieval"
	"docforge/internal/text"
)

// File is one chunked document offered as retrieval context. Vectors are
// optional; when absent or mismatched they are recomputed through the cache.
type File struct {
	FileName string      `json:"fileName"`
	Chunks   []string    `json:"chunks"`
	Vectors  [][]float32 `json:"vectors,omitempty"`
}

// Response is the retrieval result: prompt-ready context blocks, the count
// actually used, and whether the engine degraded to source order.
type Response struct {
	Results  []string `json:"results"`
	K        int      `json:"k"`
	Fallback bool     `json:"fallback"`
}

type Engine interface {
	TopK(ctx context.Context, query string, candidates []retrieval.Candidate, k int) ([]text.Segment, bool, error)
}

type Service struct {
	engine   Engine
	embedder embed.Client
	cache    *embed.Cache
	queryLog *retrieval.QueryLogger
}

func NewService(engine Engine, embedder embed.Client, cache *embed.Cache, queryLog *retrieval.QueryLogger) *Service {
	return &Service{engine: engine, embedder: embedder, cache: cache, queryLog: queryLog}
}

func (s *Service) Retrieve(ctx context.Context, user, query string, files []File) (*Response, error) {
	candidates, degraded, err := s.candidates(ctx, files)
	if err != nil {
		return nil, err
	}

	policy := policyFor(files)
	k := retrieval.EstimateK(query, policy)

	segments, fallback, err := s.engine.TopK(ctx, query, candidates, k)
	if err != nil {
		return nil, err
	}
	fallback = fallback || degraded

	if s.queryLog != nil {
		s.queryLog.Log(user, query, len(segments), fallback)
	}
	return &Response{Results: retrieval.FormatContext(segments), K: len(segments), Fallback: fallback}, nil
}

// candidates flattens the files into scored units, reusing caller-provided
// vectors when complete and otherwise embedding chunks through the cache.
// degraded reports that chunk embedding failed and the candidates carry no
// vectors, so any ranking over them is effectively source order.
func (s *Service) candidates(ctx context.Context, files []File) (candidates []retrieval.Candidate, degraded bool, err error) {
	ordinal := 0
	var missing []File

	for _, f := range files {
		if len(f.Vectors) == len(f.Chunks) && len(f.Chunks) > 0 {
			for i, chunk := range f.Chunks {
				candidates = append(candidates, retrieval.Candidate{
					Segment: text.Segment{Text: chunk, SourceFileName: f.FileName, Index: ordinal},
					Vector:  f.Vectors[i],
				})
				ordinal++
			}
			continue
		}
		missing = append(missing, f)
	}

	if len(missing) == 0 {
		return candidates, false, nil
	}

	// The cache key and content hash are file-order-insensitive, so the
	// vector list must be produced and consumed in the same canonical order
	// or a reordered request would pair chunks with other files' vectors.
	sort.SliceStable(missing, func(i, j int) bool { return missing[i].FileName < missing[j].FileName })

	fileChunks := make([]embed.FileChunks, len(missing))
	var texts []string
	for i, f := range missing {
		fileChunks[i] = embed.FileChunks{FileName: f.FileName, Chunks: f.Chunks}
		texts = append(texts, f.Chunks...)
	}

	key, hash := embed.Key(fileChunks), embed.ContentHash(fileChunks)
	vectors, ok := s.cache.Get(key, hash)
	if !ok {
		vectors, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			slog.WarnContext(ctx, "chunk embedding failed, degrading to source order", "error", err)
			vectors = make([][]float32, len(texts))
			degraded = true
			err = nil
		} else {
			s.cache.Put(key, hash, vectors)
		}
	}

	i := 0
	for _, f := range missing {
		for _, chunk := range f.Chunks {
			candidates = append(candidates, retrieval.Candidate{
				Segment: text.Segment{Text: chunk, SourceFileName: f.FileName, Index: ordinal},
				Vector:  vectors[i],
			})
			ordinal++
			i++
		}
	}
	return candidates, degraded, nil
}

// policyFor classifies the offered context so the count estimator works with
// the same ranges the chunker used.
func policyFor(files []File) text.Policy {
	if len(files) == 0 {
		return text.PolicyFor(text.ContentTypeGeneral)
	}
	var sample strings.Builder
sampling:
	for _, f := range files {
		for _, chunk := range f.Chunks {
			sample.WriteString(chunk)
			if sample.Len() > 4000 {
				break sampling
			}
		}
	}
	return text.PolicySelect(sample.String(), files[0].FileName)
}
