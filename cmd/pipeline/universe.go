package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"peer_valuation/pkg/core/app"
	"peer_valuation/pkg/core/export"
	"peer_valuation/pkg/core/market"
	"peer_valuation/pkg/core/valuation"
)

func newUniverseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Manage the peer universe",
	}

	build := &cobra.Command{
		Use:   "build <ticker>...",
		Short: "Fetch fundamentals for tickers and write a universe CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUniverseBuild,
	}
	f := build.Flags()
	f.String("out", "", "Output CSV (defaults to the configured universe path)")
	f.Float64("min-revenue", 0, "Drop companies with revenue below this (millions)")
	f.StringSlice("exclude-sector", nil, "Sectors to drop")
	f.Bool("require-multiples", false, "Drop companies with neither EV/EBITDA nor P/E")
	f.Float64("ev-ebitda-min", 0, "Lower EV/EBITDA bound (requires --ev-ebitda-max)")
	f.Float64("ev-ebitda-max", 0, "Upper EV/EBITDA bound")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the configured universe",
		Args:  cobra.NoArgs,
		RunE:  runUniverseShow,
	}

	cmd.AddCommand(build, show)
	return cmd
}

func runUniverseBuild(cmd *cobra.Command, args []string) error {
	client := app.NewMarketClient(cfg.Market, log)
	if client == nil {
		return fmt.Errorf("EODHD_API_KEY is not set")
	}

	filter := market.UniverseFilter{
		MinRevenue:       viper.GetFloat64("min-revenue"),
		ExcludedSectors:  viper.GetStringSlice("exclude-sector"),
		RequireMultiples: viper.GetBool("require-multiples"),
	}
	if hi := viper.GetFloat64("ev-ebitda-max"); hi > 0 {
		filter.EVEBITDABand = &valuation.Band{Low: viper.GetFloat64("ev-ebitda-min"), High: hi}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := market.BuildUniverse(ctx, client, app.NewProfileScraper(cfg.Market, log), args, filter, log)
	if err != nil {
		return err
	}

	out := viper.GetString("out")
	if out == "" {
		out = cfg.Peers.UniversePath
	}
	if err := export.WriteFile(out, func(w io.Writer) error { return market.WriteUniverseCSV(w, set) }); err != nil {
		return err
	}
	log.Info().Int("companies", len(set)).Str("path", out).Msg("Universe written")
	return nil
}

func runUniverseShow(cmd *cobra.Command, args []string) error {
	u, err := market.LoadUniverse(cfg.Peers.UniversePath)
	if err != nil {
		return err
	}
	return market.WriteUniverseCSV(cmd.OutOrStdout(), u.Companies)
}
