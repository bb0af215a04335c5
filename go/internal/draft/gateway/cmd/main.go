package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/gateway"
	"github.com/mcdev12/draftslots/go/internal/draft/journal"
	"github.com/mcdev12/draftslots/go/internal/draft/store/natskv"
)

// The standalone gateway serves sockets for sessions kept in NATS KV, so it
// can scale apart from the RPC server.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	port := getEnv("GATEWAY_PORT", "8081")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kvConfig := natskv.DefaultConfig()
	kvConfig.URL = natsURL
	shared, err := natskv.New(ctx, kvConfig, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session store")
	}
	defer shared.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gatewayConfig := gateway.DefaultConfig()
	if getEnv("JOURNAL_ENABLED", "true") == "true" {
		jsConfig := journal.DefaultJetStreamConfig()
		jsConfig.URL = natsURL
		publisher, err := journal.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open event journal")
		}
		defer publisher.Close()

		gatewayConfig.Sink = journal.NewMetricPublisher(publisher, journal.NewPrometheusMetrics(registry), journal.DefaultRetryConfig(), nil)
		gatewayConfig.History = publisher
	}

	log.Info().
		Str("nats_url", natsURL).
		Str("port", port).
		Msg("starting draft gateway")

	gatewayService := gateway.NewService(gatewayConfig, shared, nil)

	r := chi.NewRouter()
	gatewayService.RegisterRoutes(r)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service":     "draft-gateway",
			"connections": gatewayService.GetStats(),
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start gateway service (broadcast loop and store subscriptions)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Cancel service context to stop gateway service
	cancel()
	<-done

	log.Info().Msg("draft gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
