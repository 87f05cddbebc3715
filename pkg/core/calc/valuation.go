// Package calc provides deterministic numeric building blocks for the valuation engine.
// This file implements discounting: CAPM, mid-year discount factors, terminal values.
package calc

import (
	"fmt"
	"math"

	"peer_valuation/pkg/models"
)

// RateTolerance is the distance under which two rates are treated as equal.
const RateTolerance = 1e-12

// =============================================================================
// COST OF CAPITAL
// =============================================================================

// CostOfEquityCAPM calculates required return on equity using CAPM.
//
// FORMULA: r_e = r_f + β × MRP
//
// Where:
//   - r_f = Risk-free rate (10-year Treasury)
//   - β = Equity beta (market sensitivity)
//   - MRP = Market Risk Premium (expected market return - risk-free rate)
func CostOfEquityCAPM(riskFreeRate, beta, marketRiskPremium float64) float64 {
	return riskFreeRate + beta*marketRiskPremium
}

// =============================================================================
// DISCOUNTING
// =============================================================================

// MidYearDiscountFactor returns the factor applied to a cash flow received mid-way
// through year t.
//
// FORMULA: DF_t = (1 + r)^-(t - 0.5)
func MidYearDiscountFactor(rate float64, year int) float64 {
	return math.Pow(1+rate, -(float64(year) - 0.5))
}

// PresentValueMidYear discounts a series of cash flows with the mid-year convention.
// The first element is year 1.
//
// FORMULA: PV = Σ [ CF_t × (1 + r)^-(t - 0.5) ]
func PresentValueMidYear(cashFlows []float64, rate float64) (float64, []float64) {
	discounted := make([]float64, len(cashFlows))
	var pv float64
	for i, cf := range cashFlows {
		discounted[i] = cf * MidYearDiscountFactor(rate, i+1)
		pv += discounted[i]
	}
	return pv, discounted
}

// =============================================================================
// TERMINAL VALUE
// =============================================================================

// TerminalValueGordonGrowth calculates a perpetuity-growth terminal value.
//
// FORMULA: TV = CF_N × (1 + g) / (r - g)
//
// Where:
//   - CF_N = final forecast year cash flow
//   - r = Discount rate (WACC)
//   - g = Long-run growth rate (must be < r)
//
// Returns models.ErrDivisionUndefined when r == g (within RateTolerance) or r < g,
// since the perpetuity formula has no meaningful value there.
func TerminalValueGordonGrowth(finalCF, discountRate, growthRate float64) (float64, error) {
	spread := discountRate - growthRate
	if math.Abs(spread) <= RateTolerance {
		return 0, fmt.Errorf("perpetuity with wacc %.6f equal to growth: %w", discountRate, models.ErrDivisionUndefined)
	}
	if spread < 0 {
		return 0, fmt.Errorf("perpetuity with wacc %.6f below growth %.6f: %w", discountRate, growthRate, models.ErrDivisionUndefined)
	}
	return finalCF * (1 + growthRate) / spread, nil
}

// TerminalValueExitMultiple capitalises the final cash flow at an exit multiple.
//
// FORMULA: TV = CF_N × multiple
func TerminalValueExitMultiple(finalCF, multiple float64) float64 {
	return finalCF * multiple
}

// =============================================================================
// FORECAST PROJECTIONS
// =============================================================================

// ProjectRevenue calculates projected revenue based on growth assumption.
//
// FORMULA: Sales_t = Sales_{t-1} × (1 + Growth_t)
func ProjectRevenue(priorRevenue, growthRate float64) float64 {
	return priorRevenue * (1 + growthRate)
}

// ProjectFromRatio calculates a projected amount as a share of revenue.
//
// FORMULA: Amount = Revenue × Ratio
func ProjectFromRatio(revenue, ratio float64) float64 {
	return revenue * ratio
}
