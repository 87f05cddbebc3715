package projection

import (
	"errors"
	"math"
	"testing"

	"peer_valuation/pkg/models"
)

func TestNewDrivers_Defaults(t *testing.T) {
	d := NewDrivers(DriverInputs{})

	if d.TaxRate != 0.21 {
		t.Errorf("Expected default tax 0.21, got %f", d.TaxRate)
	}
	if d.Years != 5 {
		t.Errorf("Expected default horizon 5, got %d", d.Years)
	}
	if d.RevenueBase != 0 || d.RevenueGrowth != 0 || d.CapexPct != 0 {
		t.Errorf("Expected zero defaults, got %+v", d)
	}

	// An explicit zero tax rate is respected, not replaced by the default.
	d = NewDrivers(DriverInputs{TaxRate: models.Float(0)})
	if d.TaxRate != 0 {
		t.Errorf("Expected explicit tax 0, got %f", d.TaxRate)
	}
}

func TestForecast_SingleYear(t *testing.T) {
	years := 1
	d := NewDrivers(DriverInputs{
		RevenueBase:     models.Float(1000),
		RevenueGrowth:   models.Float(0.10),
		EBITDAMargin:    models.Float(0.20),
		CapexPct:        models.Float(0.05),
		DepreciationPct: models.Float(0.03),
		NWCPct:          models.Float(0.02),
		TaxRate:         models.Float(0.25),
		Years:           &years,
	})

	fc, err := Forecast(d)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fc) != 1 {
		t.Fatalf("Expected 1 year, got %d", len(fc))
	}

	y := fc[0]
	checks := []struct {
		name      string
		got, want float64
	}{
		{"Revenue", y.Revenue, 1100},
		{"EBITDA", y.EBITDA, 220},
		{"Depreciation", y.Depreciation, 33},
		{"EBIT", y.EBIT, 187},
		{"NOPAT", y.NOPAT, 140.25},
		{"Capex", y.Capex, 55},
		{"ChangeInNWC", y.ChangeInNWC, 22},
		{"FCF", y.FCF, 96.25},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", c.name, c.want, c.got)
		}
	}
}

func TestForecast_ZeroDriversYieldZeroFCF(t *testing.T) {
	fc, err := Forecast(NewDrivers(DriverInputs{}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fc) != DefaultYears {
		t.Fatalf("Expected %d years, got %d", DefaultYears, len(fc))
	}
	for _, y := range fc {
		if y.FCF != 0 {
			t.Errorf("Year %d: expected FCF 0, got %f", y.Year, y.FCF)
		}
	}
}

func TestForecast_RevenueCompounds(t *testing.T) {
	d := NewDrivers(DriverInputs{RevenueBase: models.Float(100), RevenueGrowth: models.Float(0.05)})
	fc, err := Forecast(d)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i := 1; i < len(fc); i++ {
		ratio := fc[i].Revenue / fc[i-1].Revenue
		if math.Abs(ratio-1.05) > 1e-12 {
			t.Errorf("Year %d: expected growth 1.05, got %f", fc[i].Year, ratio)
		}
	}
	if math.Abs(fc[4].Revenue-100*math.Pow(1.05, 5)) > 1e-9 {
		t.Errorf("Expected year 5 revenue %f, got %f", 100*math.Pow(1.05, 5), fc[4].Revenue)
	}
}

func TestForecast_InvalidHorizon(t *testing.T) {
	for _, years := range []int{0, -3} {
		y := years
		_, err := Forecast(NewDrivers(DriverInputs{Years: &y}))
		if !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Years=%d: expected ErrInvalidInput, got %v", years, err)
		}
	}
}

func TestFCFs(t *testing.T) {
	fc := []models.ForecastYear{{Year: 1, FCF: 10}, {Year: 2, FCF: 12}}
	got := FCFs(fc)
	if len(got) != 2 || got[0] != 10 || got[1] != 12 {
		t.Errorf("Expected [10 12], got %v", got)
	}
}
