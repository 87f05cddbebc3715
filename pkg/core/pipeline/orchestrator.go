package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/core/llm"
	"peer_valuation/pkg/core/market"
	"peer_valuation/pkg/core/peers"
	"peer_valuation/pkg/core/projection"
	"peer_valuation/pkg/core/valuation"
	"peer_valuation/pkg/models"
)

// Universe is the peer universe for a run. Peers must return fresh copies.
type Universe interface {
	market.Provider
	Peers() models.PeerSet
}

// ResultRepository persists finished runs.
type ResultRepository interface {
	Save(ctx context.Context, result *models.ValuationResult) error
}

// FallbackCompany describes a target that is in neither the universe nor the
// market data provider.
type FallbackCompany struct {
	Description  string   `json:"description"`
	Sector       string   `json:"sector"`
	RevenueBase  *float64 `json:"revenue_base" validate:"omitempty,gt=0"`
	EBITDAMargin *float64 `json:"ebitda_margin"`
	Earnings     *float64 `json:"earnings"`
}

// Request is one valuation run.
type Request struct {
	CompanyName    string              `json:"company_name" validate:"required"`
	WACC           float64             `json:"wacc" validate:"gt=-1"`
	TerminalGrowth float64             `json:"terminal_growth"`
	DCFWeight      float64             `json:"dcf_weight" validate:"gte=0,lte=1"`
	TopNPeers      int                 `json:"top_n_peers" validate:"gt=0"`
	MinSimilarity  float64             `json:"min_similarity" validate:"gte=-1,lte=1"`
	MultipleType   models.MultipleType `json:"multiple_type" validate:"oneof=ev_ebitda pe_ratio"`

	WACCRange           *valuation.Range `json:"wacc_range,omitempty"`
	TerminalGrowthRange *valuation.Range `json:"terminal_growth_range,omitempty"`
	SensitivityStep     float64          `json:"sensitivity_step,omitempty" validate:"gte=0"`

	ExitMultiple      *float64 `json:"exit_multiple,omitempty" validate:"omitempty,gt=0"`
	TerminalMethod    string   `json:"terminal_method,omitempty" validate:"omitempty,oneof=perpetuity exit"`
	DescriptionWeight *float64 `json:"desc_weight,omitempty" validate:"omitempty,gte=0,lte=1"`
	Years             *int     `json:"years,omitempty" validate:"omitempty,gt=0"`
	ForceRegenerate   bool     `json:"force_regenerate,omitempty"`

	// CAPM replaces WACC with a rate built from capital structure.
	CAPM *valuation.WACCInput `json:"capm,omitempty"`
	// SanityBand overrides valuation.DefaultSanityBand; DisableSanityBand keeps every multiple.
	SanityBand        *valuation.Band  `json:"sanity_band,omitempty"`
	DisableSanityBand bool             `json:"disable_sanity_band,omitempty"`
	Fallback          *FallbackCompany `json:"fallback,omitempty"`
}

// DefaultRequest returns a request with the standard assumptions.
func DefaultRequest(company string) Request {
	return Request{
		CompanyName:    company,
		WACC:           0.10,
		TerminalGrowth: 0.03,
		DCFWeight:      0.5,
		TopNPeers:      5,
		MinSimilarity:  0.0,
		MultipleType:   models.MultipleEVEBITDA,
	}
}

// Orchestrator runs target resolution, peer matching and both valuation
// signals, then combines them.
type Orchestrator struct {
	universe Universe
	fallback market.Provider
	builder  *peers.Builder
	repo     ResultRepository
	logger   arbor.ILogger
	validate *validator.Validate
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator over a universe and a vector builder.
func NewOrchestrator(universe Universe, builder *peers.Builder, logger arbor.ILogger) *Orchestrator {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(valuation.Range)
		if !(r.Lo < r.Hi) {
			sl.ReportError(r.Hi, "Hi", "Hi", "gtfield", "Lo")
		}
	}, valuation.Range{})

	return &Orchestrator{
		universe: universe,
		builder:  builder,
		logger:   logger,
		validate: v,
		now:      time.Now,
	}
}

// SetFallbackProvider sets the source consulted when the target is not in the universe.
func (o *Orchestrator) SetFallbackProvider(p market.Provider) {
	o.fallback = p
}

// SetRepository allows injecting a result repository.
func (o *Orchestrator) SetRepository(repo ResultRepository) {
	o.repo = repo
}

// Validate checks a request. Failures wrap models.ErrInvalidInput.
func (o *Orchestrator) Validate(req Request) error {
	if err := o.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// Run values one company.
//
// A run fails outright when the request is invalid, the target cannot be
// resolved (models.ErrNotFound) or neither the DCF nor the peer signal is
// usable (models.ErrNoValidPeers when no peer cleared the threshold,
// models.ErrUnavailable otherwise). Any other step that fails leaves its
// fields nil and adds a warning.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.ValuationResult, error) {
	if err := o.Validate(req); err != nil {
		return nil, err
	}
	start := o.now()
	log := o.logger

	result := &models.ValuationResult{
		RunID:       uuid.NewString(),
		CompanyName: strings.TrimSpace(req.CompanyName),
		GeneratedAt: start.UTC(),
	}
	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		result.Warnings = append(result.Warnings, msg)
		log.Warn().Str("run_id", result.RunID).Msg(msg)
	}

	log.Info().Str("run_id", result.RunID).Str("company", result.CompanyName).Msg("Starting valuation run")

	// 1. Target
	var peerSet models.PeerSet
	if o.universe != nil {
		peerSet = o.universe.Peers()
	}
	target, err := o.resolveTarget(ctx, req, peerSet)
	if err != nil {
		return nil, err
	}
	result.Ticker = target.Ticker

	// 2. Peers
	matches, err := o.matchPeers(ctx, req, target, peerSet, warn)
	if err != nil {
		return nil, err
	}
	result.TopPeers = matches

	// 3. Relative valuation
	var peerEstimate valuation.Estimate = valuation.Missing()
	if len(matches) > 0 {
		pm, err := valuation.ApplyPeerMultiples(target, matches, valuation.PeerMultipleInput{
			MultipleType: req.MultipleType,
			SanityBand:   sanityBand(req),
		})
		if err != nil {
			warn("peer multiples failed: %v", err)
		} else {
			result.PeerMultiple = &pm
			result.PeerValue = pm.ImpliedValue
			peerEstimate = valuation.Structured(pm.ImpliedValue, nil)
			if pm.ImpliedValue == nil {
				warn("peer valuation unavailable: %d usable %s multiples", pm.PeerCount, req.MultipleType)
			}
		}
	}

	// 4. DCF
	fcfs := o.runDCF(req, target, result, warn)
	dcfEstimate := valuation.FromPtr(result.DCFValue)

	// 5. Combine
	if combined, ok := valuation.Combine(dcfEstimate, peerEstimate, req.DCFWeight); ok {
		result.CombinedValuation = models.Float(combined)
	} else {
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: no DCF value and no peers: %w", result.CompanyName, models.ErrNoValidPeers)
		}
		return nil, fmt.Errorf("%s: neither valuation signal is usable: %w", result.CompanyName, models.ErrUnavailable)
	}

	// 6. Sensitivity
	switch {
	case req.WACCRange != nil && req.TerminalGrowthRange != nil:
		if len(fcfs) == 0 {
			warn("sensitivity analysis skipped: no forecast cash flows")
			break
		}
		grid, err := valuation.SensitivityGrid(fcfs, valuation.SensitivityInput{
			WACC:           *req.WACCRange,
			TerminalGrowth: *req.TerminalGrowthRange,
			Step:           req.SensitivityStep,
		})
		if err != nil {
			warn("sensitivity analysis failed: %v", err)
			break
		}
		result.Sensitivity = grid
	case req.WACCRange != nil || req.TerminalGrowthRange != nil:
		warn("sensitivity analysis needs both a WACC range and a terminal growth range")
	}

	// 7. Persist
	if o.repo != nil {
		if err := o.repo.Save(ctx, result); err != nil {
			warn("failed to save result: %v", err)
		}
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("peers", len(result.TopPeers)).
		Float64("combined", models.Value(result.CombinedValuation, 0)).
		Int("warnings", len(result.Warnings)).
		Str("duration", o.now().Sub(start).String()).
		Msg("Valuation run complete")

	return result, nil
}

// resolveTarget looks in the universe, then the fallback provider, then the
// request's manual fields.
func (o *Orchestrator) resolveTarget(ctx context.Context, req Request, peerSet models.PeerSet) (*models.Company, error) {
	if c, ok := peerSet.Find(req.CompanyName); ok {
		return c, nil
	}

	if o.fallback != nil {
		c, err := o.fallback.Lookup(ctx, req.CompanyName)
		switch {
		case err == nil:
			o.logger.Info().Str("company", c.Name).Msg("Target resolved from market data")
			return c, nil
		case !errors.Is(err, models.ErrNotFound):
			o.logger.Warn().Err(err).Str("company", req.CompanyName).Msg("Market data lookup failed")
		}
	}

	if f := req.Fallback; f != nil && (strings.TrimSpace(f.Description) != "" || f.RevenueBase != nil) {
		c := &models.Company{
			Name:         strings.TrimSpace(req.CompanyName),
			Description:  strings.TrimSpace(f.Description),
			Sector:       f.Sector,
			RevenueBase:  f.RevenueBase,
			EBITDAMargin: f.EBITDAMargin,
			Earnings:     f.Earnings,
			EVEBITDA:     models.Float(market.FallbackEVEBITDA),
			PERatio:      models.Float(market.FallbackPERatio),
		}
		market.FillDriverDefaults(c)
		o.logger.Info().Str("company", c.Name).Msg("Target built from manual inputs")
		return c, nil
	}

	return nil, fmt.Errorf("target %q: %w", req.CompanyName, models.ErrNotFound)
}

// matchPeers embeds the target and the universe, then ranks. Only context
// cancellation is returned as an error.
func (o *Orchestrator) matchPeers(ctx context.Context, req Request, target *models.Company, peerSet models.PeerSet, warn func(string, ...interface{})) ([]models.SimilarityMatch, error) {
	if o.builder == nil || len(peerSet) == 0 {
		warn("no peer universe configured")
		return nil, nil
	}

	// Target and peers share one vector space for the whole run.
	b := *o.builder
	b.Embedder = llm.Pin(b.Embedder)
	if req.DescriptionWeight != nil {
		b.DescriptionWeight = *req.DescriptionWeight
	}
	b.ForceRegenerate = b.ForceRegenerate || req.ForceRegenerate

	targetVec := target.EmbeddingVector
	if !peers.Valid(targetVec) {
		vec, err := b.BuildVector(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			warn("target vector unavailable: %v", err)
			return nil, nil
		}
		targetVec = vec
	}

	report, err := b.PrepareVectors(ctx, peerSet)
	if err != nil {
		return nil, err
	}
	if len(report.Failed) > 0 {
		warn("%d peers have no vector: %s", len(report.Failed), strings.Join(report.Failed, ", "))
	}

	matches, err := peers.Rank(targetVec, peerSet, peers.RankOptions{
		TopK:          req.TopNPeers,
		TargetName:    target.Name,
		MinSimilarity: req.MinSimilarity,
	})
	if err != nil {
		warn("peer ranking failed: %v", err)
		return nil, nil
	}
	if len(matches) == 0 {
		warn("no peers at or above min similarity %.2f", req.MinSimilarity)
	}
	return matches, nil
}

// runDCF fills the DCF fields on result and returns the forecast FCFs.
// A precomputed DCF value on the target takes precedence over the forecast.
func (o *Orchestrator) runDCF(req Request, target *models.Company, result *models.ValuationResult, warn func(string, ...interface{})) []float64 {
	if target.RevenueBase == nil {
		if target.DCFValue != nil && calc.IsFinite(*target.DCFValue) {
			result.DCFValue = models.Float(calc.Round2(*target.DCFValue))
			return nil
		}
		warn("DCF unavailable: no revenue base for %s", target.Name)
		return nil
	}

	forecast, err := projection.Forecast(projection.NewDrivers(projection.InputsFromCompany(target, req.Years)))
	if err != nil {
		warn("forecast failed: %v", err)
		return nil
	}
	result.Forecast = forecast
	fcfs := projection.FCFs(forecast)

	if target.DCFValue != nil && calc.IsFinite(*target.DCFValue) {
		result.DCFValue = models.Float(calc.Round2(*target.DCFValue))
	} else {
		wacc := req.WACC
		if req.CAPM != nil {
			w, err := valuation.CalculateWACC(*req.CAPM)
			if err != nil {
				warn("CAPM WACC rejected, using %.4f: %v", req.WACC, err)
			} else {
				wacc = w.WACC
			}
		}

		dcf, err := valuation.DiscountCashFlows(fcfs, valuation.DCFInput{
			WACC:           wacc,
			TerminalGrowth: req.TerminalGrowth,
			Method:         req.TerminalMethod,
			ExitMultiple:   req.ExitMultiple,
		})
		if err != nil {
			warn("DCF failed: %v", err)
		} else {
			result.DCFValue = models.Float(calc.Round2(dcf.EnterpriseValue))
			info := dcf.Terminal
			result.TerminalInfo = &info
		}
	}

	if req.ExitMultiple != nil && len(fcfs) > 0 {
		tv, ok := valuation.ExitTerminalValue(fcfs[len(fcfs)-1], models.Value(target.EBITDAMargin, 0), *req.ExitMultiple)
		if ok {
			result.ExitTerminalValue = models.Float(calc.Round2(tv))
		} else {
			warn("exit terminal value unavailable: zero EBITDA margin")
		}
	}
	return fcfs
}

func sanityBand(req Request) *valuation.Band {
	if req.DisableSanityBand {
		return nil
	}
	if req.SanityBand != nil {
		return req.SanityBand
	}
	band := valuation.DefaultSanityBand
	return &band
}
