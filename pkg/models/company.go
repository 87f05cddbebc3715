package models

import (
	"math"
	"strings"
)

// Company is a valuation subject or a candidate peer.
// Driver fields are pointers: nil means "not provided", never zero.
type Company struct {
	Name        string `json:"name"`
	Ticker      string `json:"ticker,omitempty"`
	Description string `json:"description,omitempty"`
	Sector      string `json:"sector,omitempty"`
	Industry    string `json:"industry,omitempty"`

	// Forecast drivers
	RevenueBase     *float64 `json:"revenue_base,omitempty"` // millions
	RevenueGrowth   *float64 `json:"revenue_growth,omitempty"`
	EBITDAMargin    *float64 `json:"ebitda_margin,omitempty"`
	CapexPct        *float64 `json:"capex_pct,omitempty"`
	DepreciationPct *float64 `json:"depreciation_pct,omitempty"`
	NWCPct          *float64 `json:"nwc_pct,omitempty"`
	TaxRate         *float64 `json:"tax_rate,omitempty"`

	// Trading multiples
	EVEBITDA *float64 `json:"ev_ebitda,omitempty"`
	PERatio  *float64 `json:"pe_ratio,omitempty"`
	Earnings *float64 `json:"earnings,omitempty"` // net income, P/E base

	EmbeddingVector []float64 `json:"embedding_vector,omitempty"`
	DCFValue        *float64  `json:"dcf_value,omitempty"`
}

// PeerSet is the ordered collection of candidate peers for one pipeline run.
type PeerSet []*Company

// NormalizeName is the identity key used for companies and cache entries.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Key returns the normalized name of the company.
func (c *Company) Key() string {
	return NormalizeName(c.Name)
}

// Matches reports whether query names this company, by name or by ticker.
func (c *Company) Matches(query string) bool {
	q := NormalizeName(query)
	if q == "" {
		return false
	}
	return c.Key() == q || (c.Ticker != "" && NormalizeName(c.Ticker) == q)
}

// Find returns the first company matching query by name or ticker.
func (s PeerSet) Find(query string) (*Company, bool) {
	for _, c := range s {
		if c != nil && c.Matches(query) {
			return c, true
		}
	}
	return nil, false
}

// Float returns a pointer to v. Handy for optional driver fields.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences p, falling back to def when p is nil.
func Value(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// ValidVector reports whether v can take part in similarity ranking:
// non-empty and every element finite.
func ValidVector(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
