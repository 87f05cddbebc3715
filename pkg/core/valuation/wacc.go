package valuation

import (
	"fmt"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// WACCInput parameters for building a discount rate from capital structure.
type WACCInput struct {
	UnleveredBeta     float64 `json:"unlevered_beta" yaml:"unlevered_beta"`
	RiskFreeRate      float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	MarketRiskPremium float64 `json:"market_risk_premium" yaml:"market_risk_premium"`
	PreTaxCostOfDebt  float64 `json:"pre_tax_cost_of_debt" yaml:"pre_tax_cost_of_debt"`
	TaxRate           float64 `json:"tax_rate" yaml:"tax_rate"`
	DebtToEquityRatio float64 `json:"debt_to_equity" yaml:"debt_to_equity"` // Target Leverage (D/E)
}

// WACCResult holds the calculated rates
type WACCResult struct {
	LeveredBeta  float64 `json:"levered_beta"`
	CostOfEquity float64 `json:"cost_of_equity"`
	CostOfDebt   float64 `json:"cost_of_debt"` // After-tax
	WACC         float64 `json:"wacc"`
	WeightDebt   float64 `json:"weight_debt"`
	WeightEquity float64 `json:"weight_equity"`
}

// CalculateWACC computes the Weighted Average Cost of Capital using CAPM and the Hamada equation.
// A negative D/E ratio is rejected because the capital weights stop summing to one.
func CalculateWACC(input WACCInput) (WACCResult, error) {
	if input.DebtToEquityRatio < 0 {
		return WACCResult{}, fmt.Errorf("debt to equity %.4f: %w", input.DebtToEquityRatio, models.ErrInvalidInput)
	}

	// BetaL = BetaU * (1 + (1-t)*(D/E))
	leveredBeta := input.UnleveredBeta * (1 + (1-input.TaxRate)*input.DebtToEquityRatio)

	ke := calc.CostOfEquityCAPM(input.RiskFreeRate, leveredBeta, input.MarketRiskPremium)
	kd := input.PreTaxCostOfDebt * (1 - input.TaxRate)

	// D = xE, V = E(1+x)
	wd := input.DebtToEquityRatio / (1 + input.DebtToEquityRatio)
	we := 1.0 / (1 + input.DebtToEquityRatio)

	return WACCResult{
		LeveredBeta:  leveredBeta,
		CostOfEquity: ke,
		CostOfDebt:   kd,
		WACC:         ke*we + kd*wd,
		WeightDebt:   wd,
		WeightEquity: we,
	}, nil
}
