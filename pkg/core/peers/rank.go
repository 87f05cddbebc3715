package peers

import (
	"fmt"
	"sort"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// RankOptions configures Rank.
type RankOptions struct {
	// TopK caps the result length. Zero or negative means no cap.
	TopK int
	// TargetName excludes the target itself from the ranking (normalized comparison).
	TargetName string
	// MinSimilarity drops peers scoring below it.
	MinSimilarity float64
}

// Rank orders peers by cosine similarity to target, highest first.
//
// Peers without a valid vector, with a dimension mismatch or a zero norm, and the
// target itself are skipped. Ties keep their input order. The target vector must
// be valid.
func Rank(target []float64, peers models.PeerSet, opts RankOptions) ([]models.SimilarityMatch, error) {
	if !Valid(target) {
		return nil, fmt.Errorf("rank: invalid target vector: %w", models.ErrInvalidInput)
	}
	self := models.NormalizeName(opts.TargetName)

	var matches []models.SimilarityMatch
	for _, c := range peers {
		if c == nil || !Valid(c.EmbeddingVector) {
			continue
		}
		if self != "" && c.Key() == self {
			continue
		}
		sim, ok := calc.CosineSimilarity(target, c.EmbeddingVector)
		if !ok || sim < opts.MinSimilarity {
			continue
		}
		matches = append(matches, models.SimilarityMatch{Company: c, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if opts.TopK > 0 && len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches, nil
}
