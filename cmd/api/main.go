package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tryon/internal/http/handlers"
	httpapi "tryon/internal/http/httpapi"
	"tryon/internal/infra"
	"tryon/internal/infra/credentials"
	"tryon/internal/metrics"
	"tryon/internal/tryon"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	collector := metrics.NewCollector("")
	registry := tryon.NewRegistry(tryon.AdaptersFromConfig(cfg, nil, &logger)...)
	orch := tryon.NewOrchestrator(tryon.Options{
		Registry: registry,
		Poller:   &tryon.Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Observer: collector,
		Logger:   &logger,
	})
	store := credentials.NewStore(cfg.ProviderTokens())
	for _, name := range registry.Names() {
		if store.Token(name).Empty() {
			logger.Warn().Str("provider", name).Msg("no api credential configured; calls will fail")
		}
	}

	app := handlers.NewApp(cfg, orch, store, collector, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("default_provider", cfg.DefaultProvider).
			Dur("poll_interval", cfg.PollInterval).
			Int("poll_max_attempts", cfg.PollMaxAttempts).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight try-on calls may still be polling; give them the write timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
