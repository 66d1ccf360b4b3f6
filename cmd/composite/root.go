package main

import (
	"github.com/spf13/cobra"

	"bouquet/internal/infra"
)

var (
	cfg    *infra.Config
	logger infra.Logger
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "composite",
	Short: "Composite a bouquet into a portrait from the command line",
	Long: "composite runs the same pipeline as the HTTP API against local files or URLs\n" +
		"and manages the stored OpenRouter key.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(keyCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	cfg = loaded
	logger = infra.NewLogger(cfg.AppEnv).With().Str("cmd", cmd.Name()).Logger()
	return nil
}
