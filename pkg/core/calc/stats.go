package calc

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// ZScoreEpsilon is added to the population standard deviation before dividing.
const ZScoreEpsilon = 1e-6

// =============================================================================
// DESCRIPTIVE STATISTICS
// =============================================================================

// Median returns the median of values. ok is false for an empty slice.
// The input is not modified.
func Median(values []float64) (median float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationStd returns the population (divide by n) standard deviation.
func PopulationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// ZScores standardises values against their own mean and population std.
//
// FORMULA: z_i = (x_i - mean) / (std + ε)
func ZScores(values []float64) []float64 {
	mean := Mean(values)
	denom := PopulationStd(values) + ZScoreEpsilon
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / denom
	}
	return out
}

// =============================================================================
// VECTOR MATH
// =============================================================================

// CosineSimilarity returns a·b / (|a||b|).
// ok is false for mismatched dimensions, empty vectors or a zero norm.
func CosineSimilarity(a, b []float64) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	// clamp float drift
	return math.Max(-1, math.Min(1, sim)), true
}

// =============================================================================
// ROUNDING
// =============================================================================

// Round rounds v half away from zero to places decimals using decimal arithmetic,
// so 2.675 rounds to 2.68 rather than the binary-float 2.67.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds a money value to cents.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
