package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer_valuation/pkg/core/config"
	"peer_valuation/pkg/core/pipeline"
	"peer_valuation/pkg/core/valuation"
	"peer_valuation/pkg/models"
)

const universeCSV = `ticker,name,description,sector,revenue_base,revenue_growth,ebitda_margin,capex_pct,depreciation_pct,nwc_pct,tax_rate,ev_ebitda,pe_ratio,earnings
TGT,Target Co,Industrial automation robots,Industrials,1000,0.05,0.2,0.04,0.03,0.01,0.21,12,20,120
AAA,Alpha Robotics,Industrial robots and automation,Industrials,800,0.06,0.22,0.05,0.03,0.01,0.21,11,18,90
BBB,Beta Machines,Factory automation equipment,Industrials,600,0.04,0.18,0.04,0.03,0.01,0.21,13,21,60
CCC,Gamma Foods,Packaged snacks,Consumer Staples,900,0.02,0.15,0.03,0.02,0.01,0.21,10,17,70
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	universe := filepath.Join(dir, "universe.csv")
	require.NoError(t, os.WriteFile(universe, []byte(universeCSV), 0o644))

	cfg := config.Default()
	cfg.Peers.UniversePath = universe
	cfg.Cache.Path = filepath.Join(dir, "vector_cache.json")
	cfg.Market.EODHDAPIKey = ""
	return cfg
}

func TestNew_RunsValuation(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Market)
	assert.Nil(t, a.Results)
	assert.Len(t, a.Universe.Companies, 4)

	req := pipeline.DefaultRequest("Target Co")
	req.MinSimilarity = -1
	result, err := a.Orchestrator.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.CombinedValuation)
	require.NotNil(t, result.DCFValue)
	assert.Len(t, result.TopPeers, 3)

	_, err = os.Stat(cfg.Cache.Path)
	assert.NoError(t, err, "vectors are persisted to the file cache")
}

func TestNew_BadgerBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = config.CacheBadger
	cfg.Cache.BadgerDir = filepath.Join(t.TempDir(), "badger")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	req := pipeline.DefaultRequest("Target Co")
	req.MinSimilarity = -1
	_, err = a.Orchestrator.Run(context.Background(), req)
	require.NoError(t, err)

	_, ok := a.Vectors.Get(context.Background(), "Alpha Robotics", a.Builder.Space())
	assert.True(t, ok)
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "redis"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Peers.UniversePath = filepath.Join(t.TempDir(), "missing.csv")
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewMarketClient(t *testing.T) {
	assert.Nil(t, NewMarketClient(config.MarketConfig{}, nil))
	assert.NotNil(t, NewMarketClient(config.MarketConfig{EODHDAPIKey: "k", RateLimit: 5}, nil))
	assert.Nil(t, NewProfileScraper(config.MarketConfig{}, nil))
}

func TestRequestDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Valuation.WACC = 0.085
	cfg.Valuation.TerminalGrowth = 0.02
	cfg.Valuation.DCFWeight = 0.7
	cfg.Valuation.MultipleType = "PE_RATIO"
	cfg.Valuation.SanityBand = &valuation.Band{Low: 2, High: 40}
	cfg.Peers.TopN = 8
	cfg.Peers.MinSimilarity = 0.3

	req, err := RequestDefaults(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.085, req.WACC)
	assert.Equal(t, 0.02, req.TerminalGrowth)
	assert.Equal(t, 0.7, req.DCFWeight)
	assert.Equal(t, models.MultiplePE, req.MultipleType)
	assert.Equal(t, 8, req.TopNPeers)
	assert.Equal(t, 0.3, req.MinSimilarity)
	assert.Equal(t, cfg.Valuation.SensitivityStep, req.SensitivityStep)
	require.NotNil(t, req.SanityBand)
	assert.NotSame(t, cfg.Valuation.SanityBand, req.SanityBand)

	cfg.Valuation.MultipleType = "ev_sales"
	_, err = RequestDefaults(cfg)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	req, err = RequestDefaults(nil)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultRequest(""), req)
}
