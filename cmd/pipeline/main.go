package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/config"
	"peer_valuation/pkg/core/logger"
)

var (
	cfg *config.Config
	log arbor.ILogger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Peer-based company valuation",
		Long:          "Values a company from a DCF on its forecast drivers and from multiples of its most similar peers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables
			_ = godotenv.Load()

			viper.SetEnvPrefix("VALUATION")
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			viper.AutomaticEnv()
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			var err error
			cfg, err = config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}
			applyConfigDefaults(cfg)

			level := cfg.Logging.Level
			if viper.GetBool("verbose") {
				level = "debug"
			}
			log = logger.Init(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file (.yaml or .hjson)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCmd(), newUniverseCmd(), newCacheCmd())
	return rootCmd
}

// applyConfigDefaults makes config values the fallback for unset flags.
// Precedence: flag, VALUATION_* env, config file, built-in default.
func applyConfigDefaults(c *config.Config) {
	viper.SetDefault("wacc", c.Valuation.WACC)
	viper.SetDefault("terminal-growth", c.Valuation.TerminalGrowth)
	viper.SetDefault("dcf-weight", c.Valuation.DCFWeight)
	viper.SetDefault("multiple-type", c.Valuation.MultipleType)
	viper.SetDefault("step", c.Valuation.SensitivityStep)
	viper.SetDefault("top-n-peers", c.Peers.TopN)
	viper.SetDefault("min-similarity", c.Peers.MinSimilarity)
	viper.SetDefault("desc-weight", c.Peers.DescriptionWeight)
}
