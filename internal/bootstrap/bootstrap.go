// Package bootstrap assembles the composite pipeline from configuration so the
// HTTP server and the CLI run exactly the same stages.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"bouquet/internal/adapter/repo"
	"bouquet/internal/domain"
	"bouquet/internal/imagegen"
	"bouquet/internal/infra"
	"bouquet/internal/infra/credentials"
	"bouquet/internal/metrics"
	"bouquet/internal/providers/openrouter"
	"bouquet/internal/storage"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "bouquet"

// Options tunes Build for its caller.
type Options struct {
	// AllowMissingKey builds a pipeline that fails each run with a
	// ConfigurationError instead of refusing to start.
	AllowMissingKey bool
	Registry        *prometheus.Registry
}

// Components is everything an entry point needs to serve composites.
type Components struct {
	Compositor  *imagegen.Compositor
	Composites  domain.CompositeRepository
	Credentials *credentials.Store
	Collector   *metrics.Collector
	Store       *storage.FileStore

	pool *pgxpool.Pool
}

// Close releases the database pool when one was opened.
func (c *Components) Close() {
	if c != nil && c.pool != nil {
		c.pool.Close()
	}
}

// Build wires storage, the optional ledger, credentials, the OpenRouter client
// and the Compositor.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger, opts Options) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	store, err := storage.NewFileStore(cfg.ResultDir)
	if err != nil {
		return nil, err
	}
	comps := &Components{
		Store:     store,
		Collector: metrics.NewCollector(MetricsNamespace, opts.Registry),
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		comps.pool = pool
		runner := infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger())

		creds := credentials.NewStore(runner)
		if err := creds.EnsureSchema(ctx); err != nil {
			comps.Close()
			return nil, fmt.Errorf("ensure credentials schema: %w", err)
		}
		ledger := repo.NewCompositeRepository(runner)
		if err := ledger.EnsureSchema(ctx); err != nil {
			comps.Close()
			return nil, fmt.Errorf("ensure ledger schema: %w", err)
		}
		comps.Credentials = creds
		comps.Composites = ledger
	} else {
		logger.Info().Msg("DATABASE_URL not set; composite ledger disabled")
	}

	apiKey, err := ResolveAPIKey(ctx, cfg, comps.Credentials)
	if err != nil {
		comps.Close()
		return nil, err
	}
	if apiKey == "" {
		if !opts.AllowMissingKey {
			comps.Close()
			return nil, domain.ConfigurationError("OPENROUTER_API_KEY is not set and no key is stored")
		}
		logger.Warn().Msg("OPENROUTER_API_KEY missing; composite requests will fail")
	}
	if !openrouter.IsKnownModel(cfg.OpenRouterModel) {
		logger.Warn().
			Str("model", cfg.OpenRouterModel).
			Strs("known", openrouter.KnownModels).
			Msg("unrecognized OPENROUTER_MODEL; passing it through")
	}

	client := openrouter.NewClient(openrouter.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.OpenRouterBaseURL,
		Model:          cfg.OpenRouterModel,
		SiteURL:        cfg.SiteURL,
		SiteName:       cfg.SiteName,
		RequestTimeout: cfg.UpstreamTimeout,
		Logger:         &logger,
		Recorder:       comps.Collector,
	})
	compositor, err := imagegen.NewCompositor(imagegen.CompositorOptions{
		Acquirer: imagegen.NewAcquirer(imagegen.AcquirerOptions{
			Timeout:       cfg.FetchTimeout,
			MaxBytes:      cfg.MaxUploadBytes,
			HostAllowlist: cfg.ImageSourceAllowlist,
			Logger:        &logger,
		}),
		Generator: client,
		Persister: imagegen.NewPersister(imagegen.PersisterOptions{
			Store:   store,
			BaseURL: cfg.StorageBaseURL,
			Timeout: cfg.FetchTimeout,
		}),
		Ledger:   comps.Composites,
		Observer: comps.Collector,
		Logger:   &logger,
	})
	if err != nil {
		comps.Close()
		return nil, err
	}
	comps.Compositor = compositor
	return comps, nil
}

// ResolveAPIKey prefers the environment and falls back to the credential
// store. An empty key with a nil error means neither source has one.
func ResolveAPIKey(ctx context.Context, cfg *infra.Config, creds *credentials.Store) (string, error) {
	if key := strings.TrimSpace(cfg.OpenRouterAPIKey); key != "" {
		return key, nil
	}
	if creds == nil {
		return "", nil
	}
	key, err := creds.OpenRouterAPIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("load stored openrouter key: %w", err)
	}
	return key, nil
}
