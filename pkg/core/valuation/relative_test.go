package valuation

import (
	"errors"
	"testing"

	"peer_valuation/pkg/models"
)

func peersWithEVEBITDA(values ...*float64) []models.SimilarityMatch {
	out := make([]models.SimilarityMatch, len(values))
	for i, v := range values {
		out[i] = models.SimilarityMatch{Company: &models.Company{Name: string(rune('A' + i)), EVEBITDA: v}}
	}
	return out
}

func TestApplyPeerMultiples_EVEBITDA(t *testing.T) {
	target := &models.Company{Name: "Target", RevenueBase: models.Float(1000), EBITDAMargin: models.Float(0.2)}
	peers := peersWithEVEBITDA(models.Float(10), models.Float(12), models.Float(14))

	res, err := ApplyPeerMultiples(target, peers, PeerMultipleInput{MultipleType: models.MultipleEVEBITDA, SanityBand: &DefaultSanityBand})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.MedianMultiple == nil || *res.MedianMultiple != 12 {
		t.Fatalf("Expected median 12, got %v", res.MedianMultiple)
	}
	if *res.TargetMetric != 200 {
		t.Errorf("Expected metric 200, got %f", *res.TargetMetric)
	}
	if *res.ImpliedValue != 2400 {
		t.Errorf("Expected implied value 2400, got %f", *res.ImpliedValue)
	}
	if res.PeerCount != 3 {
		t.Errorf("Expected 3 peers used, got %d", res.PeerCount)
	}
}

func TestApplyPeerMultiples_SanityBand(t *testing.T) {
	target := &models.Company{Name: "Target", RevenueBase: models.Float(100), EBITDAMargin: models.Float(0.1)}
	peers := peersWithEVEBITDA(models.Float(1), models.Float(10), models.Float(12), models.Float(95), nil)

	res, err := ApplyPeerMultiples(target, peers, PeerMultipleInput{MultipleType: models.MultipleEVEBITDA, SanityBand: &DefaultSanityBand})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.PeerCount != 2 || *res.MedianMultiple != 11 {
		t.Errorf("Expected 2 peers with median 11, got %d / %v", res.PeerCount, *res.MedianMultiple)
	}

	// Without a band the outliers are kept
	res, err = ApplyPeerMultiples(target, peers, PeerMultipleInput{MultipleType: models.MultipleEVEBITDA})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.PeerCount != 4 || *res.MedianMultiple != 11 {
		t.Errorf("Expected 4 peers with median 11, got %d / %v", res.PeerCount, *res.MedianMultiple)
	}
}

func TestApplyPeerMultiples_PE(t *testing.T) {
	target := &models.Company{Name: "Target", Earnings: models.Float(50.5)}
	peers := []models.SimilarityMatch{
		{Company: &models.Company{Name: "A", PERatio: models.Float(20)}},
		{Company: &models.Company{Name: "B", PERatio: models.Float(25)}},
	}
	res, err := ApplyPeerMultiples(target, peers, PeerMultipleInput{MultipleType: models.MultiplePE, SanityBand: &DefaultSanityBand})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if *res.MedianMultiple != 22.5 || *res.ImpliedValue != 1136.25 {
		t.Errorf("Expected 22.5 x 50.5 = 1136.25, got %v x %v = %v", *res.MedianMultiple, *res.TargetMetric, *res.ImpliedValue)
	}
}

func TestApplyPeerMultiples_MissingData(t *testing.T) {
	peers := peersWithEVEBITDA(models.Float(10))

	tests := []struct {
		name   string
		target *models.Company
		peers  []models.SimilarityMatch
	}{
		{"no revenue", &models.Company{Name: "T", EBITDAMargin: models.Float(0.2)}, peers},
		{"no margin", &models.Company{Name: "T", RevenueBase: models.Float(10)}, peers},
		{"no peers", &models.Company{Name: "T", RevenueBase: models.Float(10), EBITDAMargin: models.Float(0.2)}, nil},
		{"peers without multiples", &models.Company{Name: "T", RevenueBase: models.Float(10), EBITDAMargin: models.Float(0.2)}, peersWithEVEBITDA(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ApplyPeerMultiples(tt.target, tt.peers, PeerMultipleInput{MultipleType: models.MultipleEVEBITDA})
			if err != nil {
				t.Fatalf("Missing data must not error, got %v", err)
			}
			if res.MedianMultiple != nil || res.TargetMetric != nil || res.ImpliedValue != nil {
				t.Errorf("Expected all values nil together, got %+v", res)
			}
		})
	}
}

func TestApplyPeerMultiples_UnsupportedType(t *testing.T) {
	_, err := ApplyPeerMultiples(&models.Company{}, nil, PeerMultipleInput{MultipleType: "ev_sales"})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestParseMultipleType(t *testing.T) {
	mt, err := ParseMultipleType(" EV_EBITDA ")
	if err != nil || mt != models.MultipleEVEBITDA {
		t.Errorf("Expected ev_ebitda, got %q (%v)", mt, err)
	}
	if _, err := ParseMultipleType("ps_ratio"); err == nil {
		t.Errorf("Expected error for ps_ratio")
	}
}
