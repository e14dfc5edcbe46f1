// Package embed converts text segments into fixed-dimension vectors through
// an external embedding service, with a content-addressed cache in front.
package embed

import (
	"context"
	"fmt"
)

// Client converts a batch of texts into vectors. Result ordering matches
// input ordering.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type ErrorKind string

const (
	ErrorTransport   ErrorKind = "Transport"
	ErrorBadResponse ErrorKind = "BadResponse"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding failed (%s): %s", e.Kind, e.Message)
}
