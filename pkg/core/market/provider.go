// Package market resolves companies and peer universes from market data sources.
package market

import (
	"context"
	"errors"
	"fmt"

	"peer_valuation/pkg/models"
)

// Provider looks up a company by name or ticker.
// Implementations return models.ErrNotFound when the company is unknown.
type Provider interface {
	Lookup(ctx context.Context, query string) (*models.Company, error)
}

// Driver assumptions used when a source carries revenue and margin but no
// investment or tax profile.
const (
	FallbackRevenueGrowth   = 0.08
	FallbackCapexPct        = 0.04
	FallbackNWCPct          = 0.03
	FallbackDepreciationPct = 0.05
	FallbackTaxRate         = 0.21
	FallbackEVEBITDA        = 16.0
	FallbackPERatio         = 22.0
)

// FillDriverDefaults sets the fallback assumptions on every nil driver except
// revenue, margin and multiples, which must come from data.
func FillDriverDefaults(c *models.Company) {
	if c.RevenueGrowth == nil {
		c.RevenueGrowth = models.Float(FallbackRevenueGrowth)
	}
	if c.CapexPct == nil {
		c.CapexPct = models.Float(FallbackCapexPct)
	}
	if c.NWCPct == nil {
		c.NWCPct = models.Float(FallbackNWCPct)
	}
	if c.DepreciationPct == nil {
		c.DepreciationPct = models.Float(FallbackDepreciationPct)
	}
	if c.TaxRate == nil {
		c.TaxRate = models.Float(FallbackTaxRate)
	}
}

// Chain tries each provider in order and returns the first hit.
// Errors other than models.ErrNotFound stop the chain.
type Chain []Provider

func (ch Chain) Lookup(ctx context.Context, query string) (*models.Company, error) {
	for _, p := range ch {
		if p == nil {
			continue
		}
		c, err := p.Lookup(ctx, query)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("company %q: %w", query, models.ErrNotFound)
}
