package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"peer_valuation/pkg/core/app"
	"peer_valuation/pkg/core/config"
	"peer_valuation/pkg/core/export"
	"peer_valuation/pkg/core/pipeline"
	"peer_valuation/pkg/core/valuation"
	"peer_valuation/pkg/models"
)

// Default export locations used when an export flag is given without a path.
const (
	defaultJSONExport        = "results/output_summary.json"
	defaultPeersExport       = "results/peer_similarity_table.csv"
	defaultSensitivityExport = "results/sensitivity_analysis.csv"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <company>",
		Short: "Value one company",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValuation,
	}

	f := cmd.Flags()
	f.Float64("wacc", 0.10, "Discount rate")
	f.Float64("terminal-growth", 0.03, "Perpetual growth after the forecast")
	f.Float64("dcf-weight", 0.5, "Weight of the DCF value in the blend (0..1)")
	f.Int("top-n-peers", 5, "Maximum number of peers")
	f.Float64("min-similarity", 0.0, "Minimum cosine similarity for a peer")
	f.String("multiple-type", string(models.MultipleEVEBITDA), "Peer multiple: ev_ebitda or pe_ratio")
	f.String("wacc-range", "", "Sensitivity WACC range as lo,hi")
	f.String("terminal-growth-range", "", "Sensitivity terminal growth range as lo,hi")
	f.Float64("step", valuation.DefaultSensitivityStep, "Sensitivity grid step")
	f.Float64("exit-multiple", 0, "EV/EBITDA exit multiple for an exit terminal value")
	f.Float64("desc-weight", 0.85, "Weight of the description embedding (0..1)")
	f.Bool("force-regenerate", false, "Ignore cached vectors")
	f.Bool("output-json", false, "Print the result as JSON instead of tables")
	f.String("export-json", "", "Write the JSON result to a file")
	f.String("export-csv", "", "Write the peer table to a CSV file")
	f.String("export-sensitivity", "", "Write the sensitivity grid to a CSV file")

	f.Lookup("export-json").NoOptDefVal = defaultJSONExport
	f.Lookup("export-csv").NoOptDefVal = defaultPeersExport
	f.Lookup("export-sensitivity").NoOptDefVal = defaultSensitivityExport
	return cmd
}

func runValuation(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(strings.Join(args, " "), cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Orchestrator.Run(ctx, req)
	if err != nil {
		return err
	}
	rec := export.ToRecord(result)

	out := cmd.OutOrStdout()
	if viper.GetBool("output-json") {
		if err := export.WriteJSON(out, rec); err != nil {
			return err
		}
	} else {
		export.RenderSummary(out, rec)
	}

	return writeExports(rec)
}

// requestFromFlags assembles a run request from flags, env and config.
func requestFromFlags(company string, c *config.Config) (pipeline.Request, error) {
	req := pipeline.DefaultRequest(company)
	req.WACC = viper.GetFloat64("wacc")
	req.TerminalGrowth = viper.GetFloat64("terminal-growth")
	req.DCFWeight = viper.GetFloat64("dcf-weight")
	req.TopNPeers = viper.GetInt("top-n-peers")
	req.MinSimilarity = viper.GetFloat64("min-similarity")
	req.SensitivityStep = viper.GetFloat64("step")
	req.ForceRegenerate = viper.GetBool("force-regenerate")

	mt, err := valuation.ParseMultipleType(viper.GetString("multiple-type"))
	if err != nil {
		return req, err
	}
	req.MultipleType = mt

	if req.WACCRange, err = parseRange(viper.GetString("wacc-range")); err != nil {
		return req, fmt.Errorf("--wacc-range: %w", err)
	}
	if req.TerminalGrowthRange, err = parseRange(viper.GetString("terminal-growth-range")); err != nil {
		return req, fmt.Errorf("--terminal-growth-range: %w", err)
	}

	if m := viper.GetFloat64("exit-multiple"); m > 0 {
		req.ExitMultiple = &m
		req.TerminalMethod = "exit"
	}
	w := viper.GetFloat64("desc-weight")
	req.DescriptionWeight = &w

	if c != nil && c.Valuation.SanityBand != nil {
		band := *c.Valuation.SanityBand
		req.SanityBand = &band
	}
	return req, nil
}

// parseRange reads "lo,hi". An empty string means no range.
func parseRange(s string) (*valuation.Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected lo,hi, got %q: %w", s, models.ErrInvalidInput)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lower bound %q: %w", parts[0], models.ErrInvalidInput)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid upper bound %q: %w", parts[1], models.ErrInvalidInput)
	}
	if !(lo < hi) {
		return nil, fmt.Errorf("lower bound %v must be below upper bound %v: %w", lo, hi, models.ErrInvalidInput)
	}
	return &valuation.Range{Lo: lo, Hi: hi}, nil
}

func writeExports(rec export.Record) error {
	if path := viper.GetString("export-json"); path != "" {
		if err := export.WriteFile(path, func(w io.Writer) error { return export.WriteJSON(w, rec) }); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Exported valuation summary")
	}
	if path := viper.GetString("export-csv"); path != "" {
		if err := export.WriteFile(path, func(w io.Writer) error { return export.WritePeersCSV(w, rec) }); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Exported peer table")
	}
	if path := viper.GetString("export-sensitivity"); path != "" {
		if rec.Sensitivity == nil {
			log.Warn().Msg("No sensitivity grid to export; pass both --wacc-range and --terminal-growth-range")
			return nil
		}
		if err := export.WriteFile(path, func(w io.Writer) error { return export.WriteSensitivityCSV(w, rec.Sensitivity) }); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Exported sensitivity grid")
	}
	return nil
}
