// Package retrieval ranks chunk candidates against a query by vector
// similarity and picks how many chunks a query deserves.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"docforge/internal/embed"
	"docforge/internal/text"
)

// Candidate pairs a chunk with its embedding. A nil vector means the chunk
// was stored without embeddings and can only be served through the fallback
// path.
type Candidate struct {
	Segment text.Segment
	Vector  []float32
}

// complexityCues mark queries that ask for exhaustive answers, in both
// languages the corpus contains.
var complexityCues = []string{
	"spiegami", "dettagli", "completo", "tutto", "tutti", "come funziona",
	"explain", "details", "complete", "how does", "what are all",
}

// EstimateK picks the retrieval count from the policy range based on query
// complexity. Long or cue-bearing queries get the max, terse ones the min.
func EstimateK(query string, policy text.Policy) int {
	lowered := strings.ToLower(query)
	for _, cue := range complexityCues {
		if strings.Contains(lowered, cue) {
			return policy.RetrievalCount.Max
		}
	}
	switch {
	case len(query) > 100:
		return policy.RetrievalCount.Max
	case len(query) < 30:
		return policy.RetrievalCount.Min
	default:
		return policy.RetrievalCount.Default
	}
}

type Engine struct {
	embedder embed.Client
}

func NewEngine(embedder embed.Client) *Engine {
	return &Engine{embedder: embedder}
}

// TopK returns the k candidates most similar to the query, best first. The
// query is embedded exactly once. When embedding fails the engine degrades to
// the first k candidates in source order and reports fallback=true instead of
// an error.
func (e *Engine) TopK(ctx context.Context, query string, candidates []Candidate, k int) (results []text.Segment, fallback bool, err error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, false, nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	queryVectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(queryVectors) != 1 {
		slog.WarnContext(ctx, "query embedding failed, falling back to source order", "error", err)
		return firstK(candidates, k), true, nil
	}
	queryVector := queryVectors[0]

	type scored struct {
		segment text.Segment
		score   float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{segment: c.Segment, score: cosineSimilarity(queryVector, c.Vector)}
	}

	// Ties resolve by chunk ordinal so results are deterministic.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].segment.Index < ranked[j].segment.Index
	})

	results = make([]text.Segment, k)
	for i := 0; i < k; i++ {
		results[i] = ranked[i].segment
	}
	slog.DebugContext(ctx, "retrieval complete", "candidates", len(candidates), "k", k, "top_score", ranked[0].score)
	return results, false, nil
}

func firstK(candidates []Candidate, k int) []text.Segment {
	results := make([]text.Segment, k)
	for i := 0; i < k; i++ {
		results[i] = candidates[i].Segment
	}
	return results
}

// FormatContext renders segments as prompt-ready blocks tagged with the
// source file name.
func FormatContext(segments []text.Segment) []string {
	blocks := make([]string, len(segments))
	for i, s := range segments {
		blocks[i] = fmt.Sprintf("[%s]\n%s", s.SourceFileName, s.Text)
	}
	return blocks
}

// cosineSimilarity returns 0 for zero-norm or mismatched vectors rather than
// erroring, so a single bad candidate cannot fail a whole retrieval.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
