package llm

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector length of HashEmbedder.
const DefaultHashDimensions = 256

// HashEmbedder is an offline, deterministic embedder: lower-cased word tokens and
// adjacent word pairs are hashed into buckets, and the counts are L2-normalised.
// Texts sharing vocabulary end up with high cosine similarity.
type HashEmbedder struct {
	Dimensions int
}

var _ Embedder = HashEmbedder{}

// Space names the vector space, which depends only on the dimension count.
func (h HashEmbedder) Space() string {
	dim := h.Dimensions
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return fmt.Sprintf("hash/%d", dim)
}

func (h HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, embedErr("hash", err)
	}
	dim := h.Dimensions
	if dim <= 0 {
		dim = DefaultHashDimensions
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil, embedErr("hash", errors.New("no tokens in text"))
	}

	vec := make([]float64, dim)
	for i, tok := range tokens {
		vec[bucket(tok, dim)]++
		if i > 0 {
			vec[bucket(tokens[i-1]+" "+tok, dim)] += 0.5
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func bucket(s string, dim int) int {
	f := fnv.New32a()
	f.Write([]byte(s))
	return int(f.Sum32() % uint32(dim))
}
