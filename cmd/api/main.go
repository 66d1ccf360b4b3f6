package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bouquet/internal/bootstrap"
	"bouquet/internal/http/handlers"
	httpapi "bouquet/internal/http/httpapi"
	"bouquet/internal/infra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	comps, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{Registry: registry})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build composite pipeline")
	}
	defer comps.Close()

	app := &handlers.App{
		Config:     cfg,
		Logger:     &logger,
		Compositor: comps.Compositor,
		Composites: comps.Composites,
	}
	router := httpapi.NewRouter(ctx, app, comps.Collector)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("model", comps.Compositor.Model()).
			Str("result_dir", comps.Store.BasePath()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
