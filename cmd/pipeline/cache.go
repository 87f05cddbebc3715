package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"peer_valuation/pkg/core/app"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and fill the vector cache",
	}

	get := &cobra.Command{
		Use:   "get <company>",
		Short: "Print the cached vector for a company",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCacheGet,
	}

	warm := &cobra.Command{
		Use:   "warm",
		Short: "Compute vectors for every company in the universe",
		Args:  cobra.NoArgs,
		RunE:  runCacheWarm,
	}
	warm.Flags().Bool("force-regenerate", false, "Recompute vectors that are already cached")

	cmd.AddCommand(get, warm)
	return cmd
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.Join(args, " ")
	space := a.Builder.Space()
	vec, ok := a.Vectors.Get(cmd.Context(), name, space)
	if !ok {
		return fmt.Errorf("no cached vector for %q in space %s", name, space)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(map[string]interface{}{
		"name":       name,
		"space":      space,
		"dimensions": len(vec),
		"vector":     vec,
	})
}

func runCacheWarm(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	builder := *a.Builder
	builder.ForceRegenerate = viper.GetBool("force-regenerate")

	report, err := builder.PrepareVectors(ctx, a.Universe.Peers())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unique=%d ready=%d failed=%d\n", report.Unique, report.Ready, len(report.Failed))
	return nil
}
