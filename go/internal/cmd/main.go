package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/mcdev12/draftslots/go/internal/sports/nfl"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	plugins, err := setupSportsPlugins(config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup sport plugins")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, config, plugins)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup services")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		services.Manager.Run(ctx)
	}()
	if services.Gateway != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := services.Gateway.Start(ctx); err != nil {
				log.Error().Err(err).Msg("gateway service failed")
			}
		}()
	}

	server := setupServer(services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("sync_backend", config.Sync.Backend).
			Str("seat_backend", config.Seats.Backend).
			Msg("draftslots server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	wg.Wait()

	if err := services.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close backends")
	}
	log.Info().Msg("draftslots shutdown complete")
}
