package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// OpenAIClient talks to an OpenAI-compatible /v1/embeddings endpoint, such as
// a local LM Studio instance.
type OpenAIClient struct {
	url    string
	model  string
	client *http.Client
}

func NewOpenAIClient(url, model string) *OpenAIClient {
	return &OpenAIClient{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type embeddingItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingItem `json:"data"`
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := map[string]interface{}{
		"input":           texts,
		"model":           c.model,
		"encoding_format": "float",
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Kind: ErrorBadResponse, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &Error{Kind: ErrorTransport, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrorTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: ErrorBadResponse, Message: fmt.Sprintf("embeddings api status %d", resp.StatusCode)}
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Kind: ErrorBadResponse, Message: err.Error()}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &Error{Kind: ErrorBadResponse, Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data))}
	}

	// The service annotates each vector with its input index and does not
	// guarantee response order.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		vectors[i] = item.Embedding
	}

	slog.DebugContext(ctx, "embeddings generated", "count", len(vectors), "dimension", dimensionOf(vectors))
	return vectors, nil
}

func dimensionOf(vectors [][]float32) int {
	if len(vectors) == 0 {
		return 0
	}
	return len(vectors[0])
}
