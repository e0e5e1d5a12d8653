package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"turbogen/internal/comfy"
	"turbogen/internal/http/handlers"
	httpapi "turbogen/internal/http/httpapi"
	"turbogen/internal/infra"
	"turbogen/internal/infra/geoip"
	"turbogen/internal/middleware"
	"turbogen/internal/storage"
	"turbogen/internal/studio"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	var saver studio.Saver
	if cfg.DownloadDir != "" {
		store, err := storage.NewFileStore(cfg.DownloadDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare download dir")
		}
		saver = store
		logger.Info().Str("dir", store.BasePath()).Msg("downloads are also saved to disk")
	}

	client := comfy.NewClient(comfy.Options{
		BaseURL:        cfg.ComfyBaseURL,
		PublicBaseURL:  cfg.ComfyPublicBaseURL,
		RequestTimeout: cfg.ComfyRequestTimeout,
		Logger:         &logger,
		PollInterval:   cfg.ComfyPollInterval,
		PollAttempts:   cfg.ComfyPollAttempts,
	})
	registry := studio.NewRegistry(cfg.SessionTTL, func() *studio.Controller {
		return studio.NewController(client, studio.Options{Logger: &logger, Saver: saver})
	})

	opts := httpapi.Options{
		Logger:        logger,
		Sessions:      middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL, !cfg.IsDevelopment()),
		CORSOrigins:   cfg.CORSAllowedOrigins,
		DefaultLocale: cfg.DefaultLocale,
		CountryLookup: lookup,
		GenerateLimit: cfg.RateLimitPerMin,
		TrustProxy:    cfg.TrustProxy,
	}
	if cfg.UsesDevProxy() {
		proxy, err := handlers.NewDevProxy(cfg.ComfyBaseURL, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build dev proxy")
		}
		opts.DevProxyPrefix = cfg.ComfyPublicBaseURL
		opts.DevProxyHandler = proxy
	}
	if cfg.SessionSecret == "" {
		logger.Warn().Msg("SESSION_SECRET not set; sessions reset on restart")
	}

	router := httpapi.NewRouter(handlers.NewApp(registry, &logger), opts)

	// HTTP server wrapper dari infra
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("comfy", client.BaseURL()).
			Str("public", client.PublicBaseURL()).
			Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		registry.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
