package valuation

import (
	"math"
	"testing"
)

func TestCalculateWACC(t *testing.T) {
	res, err := CalculateWACC(WACCInput{
		UnleveredBeta:     1.0,
		RiskFreeRate:      0.04,
		MarketRiskPremium: 0.05,
		PreTaxCostOfDebt:  0.06,
		TaxRate:           0.25,
		DebtToEquityRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// BetaL = 1 * (1 + 0.75*0.5) = 1.375; Ke = 0.04 + 1.375*0.05 = 0.10875
	if math.Abs(res.LeveredBeta-1.375) > 1e-12 {
		t.Errorf("Expected levered beta 1.375, got %f", res.LeveredBeta)
	}
	if math.Abs(res.CostOfEquity-0.10875) > 1e-12 {
		t.Errorf("Expected Ke 0.10875, got %f", res.CostOfEquity)
	}
	// Kd = 0.045; weights 1/3 debt, 2/3 equity
	want := 0.10875*2/3 + 0.045/3
	if math.Abs(res.WACC-want) > 1e-12 {
		t.Errorf("Expected WACC %f, got %f", want, res.WACC)
	}
	if math.Abs(res.WeightDebt+res.WeightEquity-1) > 1e-12 {
		t.Errorf("Expected weights to sum to 1")
	}
}

func TestCalculateWACC_NegativeLeverage(t *testing.T) {
	if _, err := CalculateWACC(WACCInput{DebtToEquityRatio: -0.2}); err == nil {
		t.Errorf("Expected error for negative D/E")
	}
}
