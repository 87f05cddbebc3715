package valuation

import (
	"fmt"
	"math"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// DefaultSensitivityStep is the grid spacing for both axes (1 percentage point).
const DefaultSensitivityStep = 0.01

// MaxAxisPoints caps the number of rates on one sensitivity axis.
const MaxAxisPoints = 1000

// axisPlaces fixes axis values to 10 decimals so equal rates compare equal.
const axisPlaces = 10

// Range is an inclusive [Lo, Hi] interval of rates.
type Range struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

// SensitivityInput configures SensitivityGrid.
type SensitivityInput struct {
	WACC           Range
	TerminalGrowth Range
	Step           float64 // DefaultSensitivityStep when zero
}

// Axis returns lo, lo+step, ... up to hi inclusive (within step×1e-6).
func Axis(r Range, step float64) ([]float64, error) {
	if step <= 0 || !calc.IsFinite(step) {
		return nil, fmt.Errorf("sensitivity step %v: %w", step, models.ErrInvalidInput)
	}
	if r.Lo > r.Hi || !calc.IsFinite(r.Lo) || !calc.IsFinite(r.Hi) {
		return nil, fmt.Errorf("sensitivity range [%v, %v]: %w", r.Lo, r.Hi, models.ErrInvalidInput)
	}

	tol := step * 1e-6
	points := math.Floor((r.Hi-r.Lo+tol)/step) + 1
	if points > MaxAxisPoints {
		return nil, fmt.Errorf("sensitivity range [%v, %v] with step %v has more than %d points: %w",
			r.Lo, r.Hi, step, MaxAxisPoints, models.ErrInvalidInput)
	}
	n := int(points)
	axis := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		axis = append(axis, calc.Round(r.Lo+float64(i)*step, axisPlaces))
	}
	return axis, nil
}

// SensitivityGrid recomputes the perpetuity DCF for every (WACC, g) pair.
// Cells where the valuation is undefined (e.g. WACC <= g) are nil.
func SensitivityGrid(fcfs []float64, input SensitivityInput) (*models.SensitivityMatrix, error) {
	if len(fcfs) == 0 {
		return nil, fmt.Errorf("sensitivity: empty cash flow series: %w", models.ErrInvalidInput)
	}
	step := input.Step
	if step == 0 {
		step = DefaultSensitivityStep
	}

	waccs, err := Axis(input.WACC, step)
	if err != nil {
		return nil, fmt.Errorf("wacc axis: %w", err)
	}
	growths, err := Axis(input.TerminalGrowth, step)
	if err != nil {
		return nil, fmt.Errorf("terminal growth axis: %w", err)
	}

	matrix := make([][]*float64, len(waccs))
	for i, w := range waccs {
		row := make([]*float64, len(growths))
		for j, g := range growths {
			res, err := DiscountCashFlows(fcfs, DCFInput{WACC: w, TerminalGrowth: g, Method: models.TerminalPerpetuity})
			if err != nil {
				continue
			}
			row[j] = models.Float(calc.Round2(res.EnterpriseValue))
		}
		matrix[i] = row
	}

	return &models.SensitivityMatrix{
		WACCValues:           waccs,
		TerminalGrowthValues: growths,
		ValuationMatrix:      matrix,
	}, nil
}
