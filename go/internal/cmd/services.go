package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/dbconfig"
	"github.com/mcdev12/draftslots/go/internal/draft"
	"github.com/mcdev12/draftslots/go/internal/draft/gateway"
	"github.com/mcdev12/draftslots/go/internal/draft/journal"
	"github.com/mcdev12/draftslots/go/internal/draft/seatstore"
	"github.com/mcdev12/draftslots/go/internal/draft/session"
	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/draft/store/natskv"
	"github.com/mcdev12/draftslots/go/internal/draft/store/pgstore"
	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/sports/base"
	"github.com/mcdev12/draftslots/go/internal/sports/nfl"
)

type Services struct {
	Registry *prometheus.Registry
	Manager  *session.Manager
	Session  *session.Service
	// Gateway is nil without a shared store.
	Gateway *gateway.Service

	closers []func() error
}

func setupServices(ctx context.Context, config *Config, plugins map[string]base.SportPlugin) (*Services, error) {
	// Wire up dependency injection chain
	// Backends → draft.Config template → session.Manager → RPC and socket services
	services := &Services{Registry: prometheus.NewRegistry()}
	services.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	plg, ok := plugins[nfl.Key]
	if !ok {
		return nil, fmt.Errorf("sport plugin %q must be enabled", nfl.Key)
	}

	dbConfig := dbconfig.NewConfigFromEnv()

	shared, err := services.setupSharedStore(ctx, config, dbConfig)
	if err != nil {
		services.Close()
		return nil, err
	}
	seats, err := services.setupSeatStore(ctx, config, dbConfig)
	if err != nil {
		services.Close()
		return nil, err
	}

	sessionConfig := session.DefaultConfig()
	if config.Session.DefaultMode != "" {
		sessionConfig.DefaultMode = models.SyncMode(config.Session.DefaultMode)
	}
	sessionConfig.IdleTimeout = config.Session.IdleTimeout
	sessionConfig.App = draft.Config{
		Teams:         plg.Teams(),
		Rosters:       plg.Rosters(),
		Stats:         plg.Stats(),
		Metrics:       draft.NewPrometheusMetrics(services.Registry),
		AutoEnrich:    config.Session.AutoEnrich,
		CommitRetries: getEnvAsInt("DRAFT_COMMIT_RETRIES", 5),
	}

	services.Manager = session.NewManager(shared, seats, sessionConfig, nil)
	services.closers = append(services.closers, func() error {
		services.Manager.Close()
		return nil
	})
	services.Session = session.NewService(services.Manager)

	if shared != nil {
		gatewayConfig := gateway.DefaultConfig()
		if config.Journal.Enabled {
			jsConfig := journal.DefaultJetStreamConfig()
			jsConfig.URL = config.Sync.NATSURL
			publisher, err := journal.NewJetStreamPublisher(ctx, jsConfig)
			if err != nil {
				services.Close()
				return nil, fmt.Errorf("failed to open event journal: %w", err)
			}
			services.closers = append(services.closers, publisher.Close)
			gatewayConfig.Sink = journal.NewMetricPublisher(publisher, journal.NewPrometheusMetrics(services.Registry), journal.DefaultRetryConfig(), nil)
			gatewayConfig.History = publisher
		}
		services.Gateway = gateway.NewService(gatewayConfig, shared, nil)
	}

	return services, nil
}

func (s *Services) setupSharedStore(ctx context.Context, config *Config, dbConfig dbconfig.Config) (store.SharedStore, error) {
	var shared store.SharedStore
	switch config.Sync.Backend {
	case BackendNone:
		log.Warn().Msg("shared sync disabled")
		return nil, nil
	case BackendMemory:
		shared = store.NewMemory(nil)
	case BackendNATS:
		kvConfig := natskv.DefaultConfig()
		kvConfig.URL = config.Sync.NATSURL
		kv, err := natskv.New(ctx, kvConfig, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open nats session store: %w", err)
		}
		shared = kv
	case BackendPostgres:
		database, err := setupDatabase(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, database.Close)
		pgConfig := pgstore.DefaultConfig()
		pgConfig.DatabaseURL = dbConfig.DSN()
		pg, err := pgstore.New(ctx, database, pgConfig, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres session store: %w", err)
		}
		shared = pg
	}
	// Closed in reverse, so the store goes before its database.
	s.closers = append(s.closers, shared.Close)
	log.Info().Str("backend", config.Sync.Backend).Msg("shared session store ready")
	return shared, nil
}

func (s *Services) setupSeatStore(ctx context.Context, config *Config, dbConfig dbconfig.Config) (seatstore.SeatStore, error) {
	var seats seatstore.SeatStore
	switch config.Seats.Backend {
	case BackendNone:
		log.Warn().Msg("local sessions disabled")
		return nil, nil
	case BackendMemory:
		seats = seatstore.NewMemory()
	case BackendSQLite:
		lite, err := seatstore.NewSQLite(config.Seats.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open seat store: %w", err)
		}
		seats = lite
	case BackendPostgres:
		pg, err := seatstore.NewPostgres(ctx, dbConfig.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open seat store: %w", err)
		}
		seats = pg
	}
	s.closers = append(s.closers, seats.Close)
	log.Info().Str("backend", config.Seats.Backend).Msg("seat store ready")
	return seats, nil
}

// Close releases the backends in reverse order of setup.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
