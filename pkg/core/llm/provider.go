package llm

import (
	"context"
	"fmt"
	"time"

	"peer_valuation/pkg/models"
)

// Embedder turns text into a fixed-length vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Spacer is implemented by embedders that can name the vector space they
// produce. Vectors from different spaces must never be compared or cached
// under the same key.
type Spacer interface {
	Space() string
}

// Pinner is implemented by embedders that route to a switchable provider.
// Pin returns the provider active at the time of the call.
type Pinner interface {
	Pin() Embedder
}

// SpaceOf names the vector space of e. Embedders that do not implement Spacer
// are identified by their type.
func SpaceOf(e Embedder) string {
	if s, ok := e.(Spacer); ok {
		return s.Space()
	}
	return fmt.Sprintf("%T", e)
}

// Pin resolves a switchable embedder to its current provider so a batch of
// calls stays in one vector space. Other embedders are returned unchanged.
func Pin(e Embedder) Embedder {
	if p, ok := e.(Pinner); ok {
		return p.Pin()
	}
	return e
}

// DefaultEmbedTimeout bounds a single embedding call.
const DefaultEmbedTimeout = 30 * time.Second

type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// WithTimeout wraps e so every call runs under its own deadline.
// A non-positive timeout returns e unchanged.
func WithTimeout(e Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: timeout}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	vec, err := t.next.Embed(ctx, text)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("embedding timed out after %s: %w: %w", t.timeout, models.ErrEmbeddingFailure, ctx.Err())
	}
	return vec, err
}

func embedErr(provider string, err error) error {
	return fmt.Errorf("%s: %w: %v", provider, models.ErrEmbeddingFailure, err)
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
