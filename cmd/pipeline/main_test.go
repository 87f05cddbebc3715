package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer_valuation/pkg/core/config"
	"peer_valuation/pkg/core/valuation"
	"peer_valuation/pkg/models"
)

const testUniverse = `ticker,name,description,sector,revenue_base,revenue_growth,ebitda_margin,capex_pct,depreciation_pct,nwc_pct,tax_rate,ev_ebitda,pe_ratio,earnings
TGT,Target Co,Industrial automation robots,Industrials,1000,0.05,0.2,0.04,0.03,0.01,0.21,12,20,120
AAA,Alpha Robotics,Industrial robots and automation,Industrials,800,0.06,0.22,0.05,0.03,0.01,0.21,11,18,90
BBB,Beta Machines,Factory automation equipment,Industrials,600,0.04,0.18,0.04,0.03,0.01,0.21,13,21,60
`

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	universe := filepath.Join(dir, "universe.csv")
	require.NoError(t, os.WriteFile(universe, []byte(testUniverse), 0o644))

	cfgPath := filepath.Join(dir, "valuation.yaml")
	yaml := fmt.Sprintf(`
peers:
  universe_path: %q
  min_similarity: -1
cache:
  backend: file
  path: %q
logging:
  level: error
`, universe, filepath.Join(dir, "vector_cache.json"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Setenv("EODHD_API_KEY", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("0.08, 0.12")
	require.NoError(t, err)
	assert.Equal(t, &valuation.Range{Lo: 0.08, Hi: 0.12}, r)

	r, err = parseRange("  ")
	require.NoError(t, err)
	assert.Nil(t, r)

	for _, bad := range []string{"0.08", "a,b", "0.1,x", "0.12,0.08", "0.1,0.1"} {
		_, err := parseRange(bad)
		assert.ErrorIs(t, err, models.ErrInvalidInput, bad)
	}
}

func TestRequestFromFlags(t *testing.T) {
	viper.Reset()
	cfg := config.Default()
	cfg.Valuation.SanityBand = &valuation.Band{Low: 2, High: 40}
	applyConfigDefaults(cfg)
	viper.Set("multiple-type", "PE_RATIO")
	viper.Set("exit-multiple", 9.0)
	viper.Set("wacc-range", "0.08,0.10")

	req, err := requestFromFlags("Acme", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Acme", req.CompanyName)
	assert.Equal(t, 0.10, req.WACC)
	assert.Equal(t, 5, req.TopNPeers)
	assert.Equal(t, models.MultiplePE, req.MultipleType)
	require.NotNil(t, req.ExitMultiple)
	assert.Equal(t, 9.0, *req.ExitMultiple)
	assert.Equal(t, "exit", req.TerminalMethod)
	assert.Equal(t, &valuation.Range{Lo: 0.08, Hi: 0.10}, req.WACCRange)
	assert.Nil(t, req.TerminalGrowthRange)
	assert.Equal(t, &valuation.Band{Low: 2, High: 40}, req.SanityBand)

	viper.Set("multiple-type", "ev_sales")
	_, err = requestFromFlags("Acme", cfg)
	assert.Error(t, err)
}

func TestRunCommand_JSONAndExports(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)
	peersCSV := filepath.Join(dir, "out", "peers.csv")
	gridCSV := filepath.Join(dir, "out", "grid.csv")

	out, err := execute(t, "run", "Target Co",
		"--config", cfgPath,
		"--output-json",
		"--wacc-range", "0.08,0.10",
		"--terminal-growth-range", "0.02,0.03",
		"--export-csv="+peersCSV,
		"--export-sensitivity="+gridCSV,
	)
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "Target Co", rec["company_name"])
	assert.NotNil(t, rec["combined_valuation"])
	assert.Len(t, rec["top_peers"], 2)

	_, err = os.Stat(peersCSV)
	assert.NoError(t, err)
	grid, err := os.ReadFile(gridCSV)
	require.NoError(t, err)
	assert.Contains(t, string(grid), "8.00%")
}

func TestRunCommand_Table(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	out, err := execute(t, "run", "Target Co", "--config", cfgPath, "--dcf-weight", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Target Co")
}

func TestRunCommand_UnknownCompany(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	_, err := execute(t, "run", "Nobody Inc", "--config", cfgPath)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCacheCommands(t *testing.T) {
	_, cfgPath := writeTestConfig(t)

	out, err := execute(t, "cache", "warm", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "unique=3 ready=3 failed=0")

	out, err = execute(t, "cache", "get", "Alpha Robotics", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"Alpha Robotics"`)
	assert.Contains(t, out, `"space":"hash:hash/256|w=0.85|num=true"`)

	_, err = execute(t, "cache", "get", "Nobody", "--config", cfgPath)
	assert.Error(t, err)
}

func TestUniverseCommands(t *testing.T) {
	_, cfgPath := writeTestConfig(t)

	out, err := execute(t, "universe", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha Robotics")

	_, err = execute(t, "universe", "build", "AAA", "--config", cfgPath)
	assert.Error(t, err, "building requires an EODHD key")
}
