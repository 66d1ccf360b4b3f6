package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bouquet/internal/infra"
	"bouquet/internal/infra/credentials"
)

var keyValue string

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored OpenRouter API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the OpenRouter API key in the database",
	Long: `Store the OpenRouter API key in the integration_tokens table.

The key is taken from --key, then OPENROUTER_API_KEY, then the first line of stdin.
DATABASE_URL must be set.`,
	RunE: runKeySet,
}

func init() {
	keySetCmd.Flags().StringVar(&keyValue, "key", "", "API key (falls back to OPENROUTER_API_KEY or stdin)")
	keyCmd.AddCommand(keySetCmd)
}

func runKeySet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(keyValue)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if key == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("OpenRouter API key is required via --key, OPENROUTER_API_KEY or stdin")
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("OpenRouter API key is empty")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := store.SetOpenRouterAPIKey(ctx, key, map[string]any{
		"set_by": "cli",
		"set_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("store openrouter api key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OpenRouter API key stored successfully")
	return nil
}
