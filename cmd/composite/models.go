package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bouquet/internal/providers/openrouter"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the known image models and the configured one",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, m := range openrouter.KnownModels {
			marker := " "
			if m == cfg.OpenRouterModel {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}
		if !openrouter.IsKnownModel(cfg.OpenRouterModel) {
			fmt.Fprintf(out, "* %s (unrecognized)\n", cfg.OpenRouterModel)
		}
		return nil
	},
}
