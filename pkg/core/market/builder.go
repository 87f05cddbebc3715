package market

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/valuation"
	"peer_valuation/pkg/models"
)

// UniverseFilter screens companies while building a universe. Companies with
// no revenue or no description are always dropped.
type UniverseFilter struct {
	// MinRevenue drops companies whose base revenue is below it (millions).
	MinRevenue float64
	// ExcludedSectors are matched case-insensitively.
	ExcludedSectors []string
	// EVEBITDABand drops companies whose EV/EBITDA is known and outside it.
	EVEBITDABand *valuation.Band
	// RequireMultiples drops companies with neither EV/EBITDA nor P/E.
	RequireMultiples bool
}

func (f UniverseFilter) keep(c *models.Company) bool {
	if c.RevenueBase == nil || strings.TrimSpace(c.Description) == "" {
		return false
	}
	if *c.RevenueBase < f.MinRevenue {
		return false
	}
	if f.EVEBITDABand != nil && c.EVEBITDA != nil && !f.EVEBITDABand.Contains(*c.EVEBITDA) {
		return false
	}
	for _, s := range f.ExcludedSectors {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(c.Sector)) {
			return false
		}
	}
	if f.RequireMultiples && c.EVEBITDA == nil && c.PERatio == nil {
		return false
	}
	return true
}

// BuildUniverse resolves each ticker through p, fills blank descriptions with
// scraper when one is given, applies the filter and deduplicates by name.
// Tickers that are not found are skipped; any other provider error aborts.
func BuildUniverse(ctx context.Context, p Provider, scraper *ProfileScraper, tickers []string, filter UniverseFilter, logger arbor.ILogger) (models.PeerSet, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}

	var set models.PeerSet
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return set, err
		}
		c, err := p.Lookup(ctx, t)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				logger.Warn().Str("ticker", t).Msg("Ticker not found, skipping")
				continue
			}
			return set, err
		}
		if scraper != nil {
			scraper.Enrich(ctx, models.PeerSet{c})
		}
		if !filter.keep(c) {
			logger.Debug().Str("ticker", t).Str("sector", c.Sector).Msg("Filtered out of universe")
			continue
		}
		set = append(set, c)
	}

	set = dedupe(set)
	logger.Info().Int("requested", len(tickers)).Int("kept", len(set)).Msg("Universe built")
	return set, nil
}
