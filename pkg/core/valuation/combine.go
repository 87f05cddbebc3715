package valuation

import (
	"peer_valuation/pkg/core/calc"
)

type estimateKind int

const (
	kindMissing estimateKind = iota
	kindScalar
	kindStructured
)

// Estimate is a valuation signal in one of three shapes: a plain number,
// a structured result carrying implied_value and/or valuation, or nothing.
type Estimate struct {
	kind      estimateKind
	scalar    float64
	implied   *float64
	valuation *float64
}

// Scalar wraps a plain number.
func Scalar(v float64) Estimate {
	return Estimate{kind: kindScalar, scalar: v}
}

// Structured wraps a result that may carry implied_value and/or valuation.
func Structured(implied, valuation *float64) Estimate {
	return Estimate{kind: kindStructured, implied: implied, valuation: valuation}
}

// Missing is the absent signal.
func Missing() Estimate {
	return Estimate{}
}

// FromPtr turns an optional number into Scalar or Missing.
func FromPtr(v *float64) Estimate {
	if v == nil {
		return Missing()
	}
	return Scalar(*v)
}

// Unwrap returns the usable number carried by the estimate.
// Structured values prefer implied_value over valuation. NaN and ±Inf are unusable.
func (e Estimate) Unwrap() (float64, bool) {
	var v *float64
	switch e.kind {
	case kindScalar:
		v = &e.scalar
	case kindStructured:
		v = e.implied
		if v == nil {
			v = e.valuation
		}
	}
	if v == nil || !calc.IsFinite(*v) {
		return 0, false
	}
	return *v, true
}

// ClampWeight limits a blend weight to [0, 1].
func ClampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// Combine blends the DCF and peer signals.
//
// Neither usable: ok is false. One usable: that value, unweighted.
// Both usable: dcf×w + peer×(1-w), rounded to 2 decimals, w clamped to [0,1].
func Combine(dcf, peer Estimate, dcfWeight float64) (float64, bool) {
	d, dOK := dcf.Unwrap()
	p, pOK := peer.Unwrap()

	switch {
	case dOK && pOK:
		w := ClampWeight(dcfWeight)
		return calc.Round2(d*w + p*(1-w)), true
	case dOK:
		return d, true
	case pOK:
		return p, true
	default:
		return 0, false
	}
}
