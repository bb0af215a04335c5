package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/sports/base"
)

// Sync backends
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Sync struct {
		// Backend of the shared document store: memory, nats, postgres or none.
		Backend string `yaml:"backend"`
		NATSURL string `yaml:"nats_url"`
	} `yaml:"sync"`
	Seats struct {
		// Backend of the local seat store: memory, sqlite, postgres or none.
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"seats"`
	Session struct {
		DefaultMode string        `yaml:"default_mode"`
		IdleTimeout time.Duration `yaml:"idle_timeout"`
		AutoEnrich  bool          `yaml:"auto_enrich"`
	} `yaml:"session"`
	Journal struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"journal"`
	Sports struct {
		EnabledPlugins []string                          `yaml:"enabled_plugins"`
		Plugins        map[string]map[string]interface{} `yaml:"plugins"`
	} `yaml:"sports"`
}

func defaultConfig() *Config {
	var config Config
	config.Sync.Backend = BackendMemory
	config.Sync.NATSURL = "nats://localhost:4222"
	config.Seats.Backend = BackendSQLite
	config.Seats.SQLitePath = "draftslots.db"
	config.Session.DefaultMode = string(models.SyncModeShared)
	config.Session.IdleTimeout = 30 * time.Minute
	config.Session.AutoEnrich = true
	config.Sports.EnabledPlugins = []string{"nfl"}
	return &config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. A missing file is not an error.
// SYNC_BACKEND, SEAT_BACKEND and NATS_URL override the file.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", path).Msg("no config file, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Sync.Backend = getEnv("SYNC_BACKEND", config.Sync.Backend)
	config.Sync.NATSURL = getEnv("NATS_URL", config.Sync.NATSURL)
	config.Seats.Backend = getEnv("SEAT_BACKEND", config.Seats.Backend)
	config.Seats.SQLitePath = getEnv("SEAT_DB_PATH", config.Seats.SQLitePath)
	config.Session.IdleTimeout = getEnvAsDuration("SESSION_IDLE_TIMEOUT", config.Session.IdleTimeout)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Sync.Backend {
	case BackendNone, BackendMemory, BackendNATS, BackendPostgres:
	default:
		return fmt.Errorf("unknown sync backend %q", c.Sync.Backend)
	}
	switch c.Seats.Backend {
	case BackendNone, BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unknown seat backend %q", c.Seats.Backend)
	}
	if c.Sync.Backend == BackendNone && c.Seats.Backend == BackendNone {
		return errors.New("at least one of sync.backend and seats.backend must be enabled")
	}
	if mode := models.SyncMode(c.Session.DefaultMode); c.Session.DefaultMode != "" && !mode.Valid() {
		return fmt.Errorf("invalid session default_mode %q", c.Session.DefaultMode)
	}
	if c.Journal.Enabled && c.Sync.Backend != BackendNATS {
		return errors.New("the event journal needs the nats sync backend")
	}
	return nil
}

func setupSportsPlugins(config *Config) (map[string]base.SportPlugin, error) {
	plugins := make(map[string]base.SportPlugin)
	for _, key := range config.Sports.EnabledPlugins {
		// Initialize the plugin now that environment variables are loaded
		if err := base.InitializePlugin(key, config.Sports.Plugins[key]); err != nil {
			return nil, fmt.Errorf("failed to initialize plugin %s (registered: %v): %w", key, base.Registered(), err)
		}

		plg, err := base.GetPlugin(key)
		if err != nil {
			return nil, fmt.Errorf("failed to get plugin %s: %w", key, err)
		}

		log.Info().Str("plugin", key).Msg("initialized sport plugin")
		plugins[key] = plg
	}
	return plugins, nil
}
