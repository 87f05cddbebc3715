package valuation

import (
	"fmt"
	"strings"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// Band is an inclusive [Low, High] range of acceptable peer multiples.
type Band struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// DefaultSanityBand drops distressed or bubble multiples before the median.
var DefaultSanityBand = Band{Low: 3, High: 30}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// ParseMultipleType validates a multiple type name.
func ParseMultipleType(s string) (models.MultipleType, error) {
	switch mt := models.MultipleType(strings.ToLower(strings.TrimSpace(s))); mt {
	case models.MultipleEVEBITDA, models.MultiplePE:
		return mt, nil
	default:
		return "", fmt.Errorf("unsupported multiple type %q: %w", s, models.ErrInvalidInput)
	}
}

// PeerMultipleInput configures ApplyPeerMultiples.
type PeerMultipleInput struct {
	MultipleType models.MultipleType
	// SanityBand filters peer multiples when set. Nil keeps every finite multiple.
	SanityBand *Band
}

// ApplyPeerMultiples values the target at the median multiple of its peers.
//
// Target metric: EBITDA (ebitda_margin × revenue_base) for ev_ebitda, earnings for pe_ratio.
// When either the median or the metric is unavailable, MedianMultiple, TargetMetric and
// ImpliedValue are all nil. Missing data never produces an error; an unsupported
// multiple type does.
func ApplyPeerMultiples(target *models.Company, peers []models.SimilarityMatch, input PeerMultipleInput) (models.PeerMultipleResult, error) {
	res := models.PeerMultipleResult{MultipleType: input.MultipleType}

	if _, err := ParseMultipleType(string(input.MultipleType)); err != nil {
		return res, err
	}

	var multiples []float64
	for _, m := range peers {
		if m.Company == nil {
			continue
		}
		v := peerMultiple(m.Company, input.MultipleType)
		if v == nil || !calc.IsFinite(*v) {
			continue
		}
		if input.SanityBand != nil && !input.SanityBand.Contains(*v) {
			continue
		}
		multiples = append(multiples, *v)
	}
	res.PeerCount = len(multiples)

	median, ok := calc.Median(multiples)
	if !ok {
		return res, nil
	}
	metric, ok := targetMetric(target, input.MultipleType)
	if !ok {
		return res, nil
	}

	res.MedianMultiple = models.Float(calc.Round2(median))
	res.TargetMetric = models.Float(calc.Round2(metric))
	res.ImpliedValue = models.Float(calc.Round2(median * metric))
	return res, nil
}

func peerMultiple(c *models.Company, mt models.MultipleType) *float64 {
	if mt == models.MultiplePE {
		return c.PERatio
	}
	return c.EVEBITDA
}

func targetMetric(c *models.Company, mt models.MultipleType) (float64, bool) {
	if c == nil {
		return 0, false
	}
	switch mt {
	case models.MultiplePE:
		if c.Earnings == nil || !calc.IsFinite(*c.Earnings) {
			return 0, false
		}
		return *c.Earnings, true
	default:
		if c.EBITDAMargin == nil || c.RevenueBase == nil {
			return 0, false
		}
		v := *c.EBITDAMargin * *c.RevenueBase
		return v, calc.IsFinite(v)
	}
}
