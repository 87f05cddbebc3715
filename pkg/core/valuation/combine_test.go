package valuation

import (
	"math"
	"testing"

	"peer_valuation/pkg/models"
)

func TestEstimate_Unwrap(t *testing.T) {
	tests := []struct {
		name string
		e    Estimate
		want float64
		ok   bool
	}{
		{"scalar", Scalar(10), 10, true},
		{"missing", Missing(), 0, false},
		{"implied preferred", Structured(models.Float(5), models.Float(7)), 5, true},
		{"valuation fallback", Structured(nil, models.Float(7)), 7, true},
		{"empty structured", Structured(nil, nil), 0, false},
		{"nan scalar", Scalar(math.NaN()), 0, false},
		{"inf implied", Structured(models.Float(math.Inf(1)), nil), 0, false},
		{"nil pointer", FromPtr(nil), 0, false},
		{"pointer", FromPtr(models.Float(3)), 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.e.Unwrap()
			if got != tt.want || ok != tt.ok {
				t.Errorf("Expected (%f, %v), got (%f, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name   string
		dcf    Estimate
		peer   Estimate
		weight float64
		want   float64
		ok     bool
	}{
		{"both weighted", Scalar(1000), Scalar(2000), 0.5, 1500, true},
		{"weight one keeps dcf", Scalar(1000), Scalar(2000), 1, 1000, true},
		{"weight zero keeps peer", Scalar(1000), Scalar(2000), 0, 2000, true},
		{"only dcf", Scalar(1234.567), Missing(), 0.3, 1234.567, true},
		{"only peer structured", Missing(), Structured(models.Float(800), nil), 0.5, 800, true},
		{"neither", Missing(), Structured(nil, nil), 0.5, 0, false},
		{"rounded", Scalar(100.005), Scalar(100.005), 0.5, 100.01, true},
		{"weight clamped high", Scalar(1000), Scalar(2000), 1.7, 1000, true},
		{"weight clamped low", Scalar(1000), Scalar(2000), -0.2, 2000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Combine(tt.dcf, tt.peer, tt.weight)
			if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected (%f, %v), got (%f, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}
