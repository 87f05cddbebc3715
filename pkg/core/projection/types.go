package projection

import (
	"peer_valuation/pkg/models"
)

// Driver defaults applied when a field is not provided.
const (
	DefaultTaxRate = 0.21
	DefaultYears   = 5
)

// DriverInputs is the raw, possibly partial set of forecast drivers.
// A nil field means "not provided".
type DriverInputs struct {
	RevenueBase     *float64 // millions
	RevenueGrowth   *float64 // % per year
	EBITDAMargin    *float64 // % of Revenue
	CapexPct        *float64 // % of Revenue
	DepreciationPct *float64 // % of Revenue
	NWCPct          *float64 // change in NWC, % of Revenue
	TaxRate         *float64 // % of EBIT
	Years           *int
}

// Drivers are fully resolved forecast drivers. Use NewDrivers to build them.
type Drivers struct {
	RevenueBase     float64
	RevenueGrowth   float64
	EBITDAMargin    float64
	CapexPct        float64
	DepreciationPct float64
	NWCPct          float64
	TaxRate         float64
	Years           int
}

// NewDrivers resolves defaults: every driver falls back to 0.0,
// the tax rate to 0.21 and the horizon to 5 years.
func NewDrivers(in DriverInputs) Drivers {
	years := DefaultYears
	if in.Years != nil {
		years = *in.Years
	}
	return Drivers{
		RevenueBase:     models.Value(in.RevenueBase, 0),
		RevenueGrowth:   models.Value(in.RevenueGrowth, 0),
		EBITDAMargin:    models.Value(in.EBITDAMargin, 0),
		CapexPct:        models.Value(in.CapexPct, 0),
		DepreciationPct: models.Value(in.DepreciationPct, 0),
		NWCPct:          models.Value(in.NWCPct, 0),
		TaxRate:         models.Value(in.TaxRate, DefaultTaxRate),
		Years:           years,
	}
}

// InputsFromCompany lifts a company's driver fields into DriverInputs.
// years may be nil for the default horizon.
func InputsFromCompany(c *models.Company, years *int) DriverInputs {
	return DriverInputs{
		RevenueBase:     c.RevenueBase,
		RevenueGrowth:   c.RevenueGrowth,
		EBITDAMargin:    c.EBITDAMargin,
		CapexPct:        c.CapexPct,
		DepreciationPct: c.DepreciationPct,
		NWCPct:          c.NWCPct,
		TaxRate:         c.TaxRate,
		Years:           years,
	}
}
