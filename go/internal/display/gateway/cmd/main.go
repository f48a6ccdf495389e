package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/liftdisplay/go/internal/display/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(logLevel(os.Getenv("LOG_LEVEL")))

	config, err := gateway.LoadConfig(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load gateway config")
	}
	config.ApplyEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openLocationStore(ctx, config.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open location store")
	}

	log.Info().
		Str("nats_url", config.JetStream.URL).
		Str("store", config.Store.Backend).
		Str("default_platform", config.DefaultPlatform).
		Str("port", config.Port).
		Msg("starting display gateway")

	gatewayService, err := gateway.NewService(config, store)
	if err != nil {
		store.Close()
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Port),
		Handler:     h2c.NewHandler(c.Handler(gatewayService.Routes()), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Cancelling ends every display session and stops the consumer
	cancel()

	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	log.Info().Msg("display gateway shutdown complete")
}

func openLocationStore(ctx context.Context, cfg gateway.StoreConfig) (gateway.LocationStore, error) {
	switch cfg.Backend {
	case gateway.StorePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		log.Info().Str("dsn", cfg.Postgres.Redacted()).Msg("connecting location store")
		return gateway.NewPostgresLocationStore(connectCtx, cfg.Postgres.DSN(), cfg.Postgres.Table)
	case gateway.StoreMemory, "":
		return gateway.NewMemoryLocationStore(), nil
	default:
		return nil, fmt.Errorf("unknown location store %q", cfg.Backend)
	}
}

func logLevel(value string) zerolog.Level {
	if value == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
