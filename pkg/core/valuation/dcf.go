package valuation

import (
	"fmt"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// DCFInput encapsulates all inputs required for a Discounted Cash Flow valuation
type DCFInput struct {
	WACC           float64  // e.g. 0.10
	TerminalGrowth float64  // e.g. 0.03
	Method         string   // models.TerminalPerpetuity (default) or models.TerminalExit
	ExitMultiple   *float64 // required for the exit method
}

// DCFResult holds the valuation outputs
type DCFResult struct {
	EnterpriseValue float64
	PV_FCF          float64
	DiscountedFCFs  []float64
	Terminal        models.TerminalValueInfo
}

// DiscountCashFlows values a forecast FCF series with mid-year discounting.
//
// Each FCF_t (t = 1..N) is discounted by (1+WACC)^-(t-0.5). The terminal value is
// FCF_N × exit multiple when the exit method is requested with a multiple, and
// FCF_N × (1+g) / (WACC-g) otherwise; it is discounted at exponent N-0.5.
//
// Errors: empty series or WACC <= -100% (models.ErrInvalidInput); a perpetuity
// with WACC == g or WACC < g (models.ErrDivisionUndefined).
func DiscountCashFlows(fcfs []float64, input DCFInput) (DCFResult, error) {
	if len(fcfs) == 0 {
		return DCFResult{}, fmt.Errorf("dcf: empty cash flow series: %w", models.ErrInvalidInput)
	}
	if input.WACC <= -1 {
		return DCFResult{}, fmt.Errorf("dcf: wacc %.4f: %w", input.WACC, models.ErrInvalidInput)
	}

	// 1. Explicit forecast period
	pvFCF, discounted := calc.PresentValueMidYear(fcfs, input.WACC)

	// 2. Terminal value
	n := len(fcfs)
	finalFCF := fcfs[n-1]
	info := models.TerminalValueInfo{FinalFCF: finalFCF}

	if input.Method == models.TerminalExit && input.ExitMultiple != nil {
		info.Method = models.TerminalExit
		info.ExitMultiple = input.ExitMultiple
		info.TerminalValue = calc.TerminalValueExitMultiple(finalFCF, *input.ExitMultiple)
	} else {
		tv, err := calc.TerminalValueGordonGrowth(finalFCF, input.WACC, input.TerminalGrowth)
		if err != nil {
			return DCFResult{}, fmt.Errorf("dcf: %w", err)
		}
		info.Method = models.TerminalPerpetuity
		info.TerminalValue = tv
	}

	// 3. Discount TV on the same mid-year convention as the final year
	info.DiscountedTerminalValue = info.TerminalValue * calc.MidYearDiscountFactor(input.WACC, n)

	return DCFResult{
		EnterpriseValue: pvFCF + info.DiscountedTerminalValue,
		PV_FCF:          pvFCF,
		DiscountedFCFs:  discounted,
		Terminal:        info,
	}, nil
}

// ExitTerminalValue estimates a terminal value from an EBITDA exit multiple
// when only the final FCF is known, backing EBITDA out through the margin.
//
// FORMULA: TV = FCF_N / EBITDA margin × multiple
//
// ok is false for a zero margin.
func ExitTerminalValue(finalFCF, ebitdaMargin, multiple float64) (float64, bool) {
	if ebitdaMargin == 0 {
		return 0, false
	}
	return finalFCF / ebitdaMargin * multiple, true
}
