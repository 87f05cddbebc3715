// Package peers builds company embedding vectors and ranks peers by cosine similarity.
package peers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/core/llm"
	"peer_valuation/pkg/models"
)

// Defaults for Builder.
const (
	DefaultDescriptionWeight = 0.85
	DefaultWorkers           = 8
)

// VectorStore is the cache consulted before any embedding is computed.
// Entries are scoped by space; a vector stored under another space is a miss.
type VectorStore interface {
	Get(ctx context.Context, name, space string) ([]float64, bool)
	Set(ctx context.Context, name, space string, vector []float64) error
}

// Builder turns companies into embedding vectors: a weighted text embedding of
// the business description, optionally extended with z-scored financial ratios.
type Builder struct {
	Embedder llm.Embedder
	Store    VectorStore // optional
	Logger   arbor.ILogger

	// DescriptionWeight scales the text part; numerics get 1-DescriptionWeight.
	DescriptionWeight float64
	UseNumerics       bool
	// ForceRegenerate skips cache reads; results are still written back.
	ForceRegenerate bool

	Workers      int           // PrepareVectors pool size
	EmbedTimeout time.Duration // per embedding call
}

// NewBuilder returns a Builder with the documented defaults.
func NewBuilder(embedder llm.Embedder, store VectorStore, logger arbor.ILogger) *Builder {
	return &Builder{
		Embedder:          embedder,
		Store:             store,
		Logger:            logger,
		DescriptionWeight: DefaultDescriptionWeight,
		UseNumerics:       true,
		Workers:           DefaultWorkers,
		EmbedTimeout:      llm.DefaultEmbedTimeout,
	}
}

// Space names the vectors this Builder produces with its current embedder:
// the embedding space plus the text weight and numerics layout.
func (b *Builder) Space() string {
	return b.spaceOf(llm.Pin(b.Embedder))
}

func (b *Builder) spaceOf(embedder llm.Embedder) string {
	return fmt.Sprintf("%s|w=%g|num=%t", llm.SpaceOf(embedder), b.DescriptionWeight, b.UseNumerics)
}

// Valid reports whether a vector can be ranked: non-empty and all elements finite.
func Valid(vector []float64) bool {
	return models.ValidVector(vector)
}

// BuildVector returns the company's embedding vector, from cache when possible.
//
// Text: the description, or the name when the description is blank.
// Numerics: [revenue_growth, ebitda_margin, capex_pct] (absent = 0), z-scored
// against each other with population std + 1e-6.
// Result: text×w ++ numerics×(1-w).
func (b *Builder) BuildVector(ctx context.Context, c *models.Company) ([]float64, error) {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("build vector: company without a name: %w", models.ErrInvalidInput)
	}

	pinned := llm.Pin(b.Embedder)
	space := b.spaceOf(pinned)

	if b.Store != nil && !b.ForceRegenerate {
		if vec, ok := b.Store.Get(ctx, c.Name, space); ok {
			return vec, nil
		}
	}

	text := strings.TrimSpace(c.Description)
	if text == "" {
		text = strings.TrimSpace(c.Name)
	}

	embedder := llm.WithTimeout(pinned, b.EmbedTimeout)
	textVec, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", c.Name, err)
	}

	w := b.DescriptionWeight
	vec := make([]float64, 0, len(textVec)+3)
	for _, v := range textVec {
		vec = append(vec, v*w)
	}

	if b.UseNumerics {
		raw := []float64{
			models.Value(c.RevenueGrowth, 0),
			models.Value(c.EBITDAMargin, 0),
			models.Value(c.CapexPct, 0),
		}
		for _, v := range raw {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("build vector %q: NaN financial ratio: %w", c.Name, models.ErrInvalidInput)
			}
		}
		for _, z := range calc.ZScores(raw) {
			vec = append(vec, z*(1-w))
		}
	}

	if !Valid(vec) {
		return nil, fmt.Errorf("build vector %q: non-finite vector: %w", c.Name, models.ErrEmbeddingFailure)
	}

	if b.Store != nil {
		if err := b.Store.Set(ctx, c.Name, space, vec); err != nil {
			b.logger().Warn().Err(err).Str("company", c.Name).Msg("Failed to cache vector")
		}
	}
	return vec, nil
}
