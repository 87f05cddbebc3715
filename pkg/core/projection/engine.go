package projection

import (
	"fmt"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// Forecast projects Years of free cash flow from constant drivers.
//
// Per year t (revenue_0 = RevenueBase):
//
//	Revenue_t    = Revenue_{t-1} × (1 + growth)
//	EBITDA       = Revenue × margin
//	Depreciation = Revenue × dep_pct
//	EBIT         = EBITDA - Depreciation
//	NOPAT        = EBIT × (1 - tax)
//	Capex        = Revenue × capex_pct
//	ΔNWC         = Revenue × nwc_pct
//	FCF          = NOPAT + Depreciation - Capex - ΔNWC
//
// The only failure is a non-positive horizon.
func Forecast(d Drivers) ([]models.ForecastYear, error) {
	if d.Years <= 0 {
		return nil, fmt.Errorf("forecast horizon %d years: %w", d.Years, models.ErrInvalidInput)
	}

	years := make([]models.ForecastYear, 0, d.Years)
	revenue := d.RevenueBase
	for t := 1; t <= d.Years; t++ {
		revenue = calc.ProjectRevenue(revenue, d.RevenueGrowth)

		ebitda := calc.ProjectFromRatio(revenue, d.EBITDAMargin)
		depreciation := calc.ProjectFromRatio(revenue, d.DepreciationPct)
		ebit := ebitda - depreciation
		nopat := ebit * (1 - d.TaxRate)
		capex := calc.ProjectFromRatio(revenue, d.CapexPct)
		changeNWC := calc.ProjectFromRatio(revenue, d.NWCPct)

		years = append(years, models.ForecastYear{
			Year:         t,
			Revenue:      revenue,
			EBITDA:       ebitda,
			Depreciation: depreciation,
			EBIT:         ebit,
			NOPAT:        nopat,
			Capex:        capex,
			ChangeInNWC:  changeNWC,
			FCF:          nopat + depreciation - capex - changeNWC,
		})
	}
	return years, nil
}

// FCFs extracts the free cash flow series, year 1 first.
func FCFs(forecast []models.ForecastYear) []float64 {
	out := make([]float64, len(forecast))
	for i, y := range forecast {
		out[i] = y.FCF
	}
	return out
}
