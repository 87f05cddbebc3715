// Package app wires configuration into a ready-to-run valuation pipeline.
// Both the CLI and the API server start from New.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/agent"
	"peer_valuation/pkg/core/config"
	"peer_valuation/pkg/core/market"
	"peer_valuation/pkg/core/peers"
	"peer_valuation/pkg/core/pipeline"
	"peer_valuation/pkg/core/store"
	"peer_valuation/pkg/core/valuation"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config       *config.Config
	Logger       arbor.ILogger
	Agents       *agent.Manager
	Vectors      peers.VectorStore
	Builder      *peers.Builder
	Universe     *market.FileUniverse
	Market       *market.EODHDClient // nil without an API key
	Results      *store.ResultRepo   // nil unless the postgres backend is selected
	Orchestrator *pipeline.Orchestrator

	closers []func()
}

// New builds the pipeline described by cfg. Close must be called when done.
func New(ctx context.Context, cfg *config.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	a.Agents = agent.NewManager(cfg.Embedding, logger)

	if err := a.openVectorStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	universe, err := market.LoadUniverse(cfg.Peers.UniversePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Universe = universe

	builder := peers.NewBuilder(a.Agents, a.Vectors, logger)
	builder.DescriptionWeight = cfg.Peers.DescriptionWeight
	builder.UseNumerics = cfg.Peers.UseNumerics
	if cfg.Peers.Workers > 0 {
		builder.Workers = cfg.Peers.Workers
	}
	if cfg.Peers.EmbedTimeoutSec > 0 {
		builder.EmbedTimeout = time.Duration(cfg.Peers.EmbedTimeoutSec) * time.Second
	}

	a.Builder = builder
	a.Orchestrator = pipeline.NewOrchestrator(universe, builder, logger)

	if a.Market = NewMarketClient(cfg.Market, logger); a.Market != nil {
		a.Orchestrator.SetFallbackProvider(a.Market)
	}
	if a.Results != nil {
		a.Orchestrator.SetRepository(a.Results)
	}

	logger.Info().
		Int("universe", len(universe.Companies)).
		Str("embedding", a.Agents.GetActiveProvider()).
		Str("cache", cfg.Cache.Backend).
		Bool("market", a.Market != nil).
		Msg("Valuation pipeline ready")
	return a, nil
}

// RequestDefaults returns the run assumptions configured under valuation and
// peers. Callers overlay per-request values on top of it.
func RequestDefaults(cfg *config.Config) (pipeline.Request, error) {
	req := pipeline.DefaultRequest("")
	if cfg == nil {
		return req, nil
	}
	v := cfg.Valuation
	req.WACC = v.WACC
	req.TerminalGrowth = v.TerminalGrowth
	req.DCFWeight = v.DCFWeight
	req.SensitivityStep = v.SensitivityStep
	if v.MultipleType != "" {
		mt, err := valuation.ParseMultipleType(v.MultipleType)
		if err != nil {
			return req, fmt.Errorf("valuation.multiple_type: %w", err)
		}
		req.MultipleType = mt
	}
	if v.SanityBand != nil {
		band := *v.SanityBand
		req.SanityBand = &band
	}
	if cfg.Peers.TopN > 0 {
		req.TopNPeers = cfg.Peers.TopN
	}
	req.MinSimilarity = cfg.Peers.MinSimilarity
	return req, nil
}

// NewMarketClient returns an EODHD client, or nil when no API key is configured.
func NewMarketClient(cfg config.MarketConfig, logger arbor.ILogger) *market.EODHDClient {
	if cfg.EODHDAPIKey == "" {
		return nil
	}
	opts := []market.EODHDOption{market.WithLogger(logger)}
	if cfg.EODHDBaseURL != "" {
		opts = append(opts, market.WithBaseURL(cfg.EODHDBaseURL))
	}
	if cfg.Exchange != "" {
		opts = append(opts, market.WithExchange(cfg.Exchange))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, market.WithRateLimit(cfg.RateLimit))
	}
	return market.NewEODHDClient(cfg.EODHDAPIKey, opts...)
}

// NewProfileScraper returns a scraper, or nil when no profile URL is configured.
func NewProfileScraper(cfg config.MarketConfig, logger arbor.ILogger) *market.ProfileScraper {
	if cfg.ProfileURL == "" {
		return nil
	}
	return market.NewProfileScraper(cfg.ProfileURL, cfg.ProfileSelector, logger)
}

func (a *App) openVectorStore(ctx context.Context) error {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "", config.CacheFile:
		cache, err := store.NewVectorCache(ctx, nil, cfg.Path, a.Logger)
		if err != nil {
			return err
		}
		a.Vectors = cache

	case config.CacheBadger:
		cache, err := store.OpenBadgerVectorCache(cfg.BadgerDir, a.Logger)
		if err != nil {
			return err
		}
		a.Vectors = cache
		a.closers = append(a.closers, func() { _ = cache.Close() })

	case config.CachePostgres:
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		cache, err := store.NewVectorCache(ctx, store.GetPool(), cfg.Path, a.Logger)
		if err != nil {
			return err
		}
		a.Vectors = cache
		a.Results = store.NewResultRepo(store.GetPool())

	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return nil
}

// Close releases the vector store and database connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
