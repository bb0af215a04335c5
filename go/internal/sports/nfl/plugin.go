package nfl

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftslots/go/clients"
	"github.com/mcdev12/draftslots/go/clients/espn_client"
	"github.com/mcdev12/draftslots/go/clients/sport_radar_client"
	"github.com/mcdev12/draftslots/go/clients/tank01_client"
	"github.com/mcdev12/draftslots/go/internal/sports/base"
	"github.com/mcdev12/draftslots/go/internal/teams"
)

// Key is the registry key of the NFL plugin.
const Key = "nfl"

// NFLPlugin implements the SportPlugin interface for the NFL.
type NFLPlugin struct {
	config  Config
	catalog *teams.Catalog
	rosters base.RosterProvider
	stats   base.StatsProvider
}

// Config holds NFL-specific configuration.
type Config struct {
	// CatalogPath overrides the embedded team catalog.
	CatalogPath string `yaml:"catalog_path"`
	// RosterSource is espn or sportradar.
	RosterSource     string        `yaml:"roster_source"`
	SportRadarAPIKey string        `yaml:"sportradar_api_key"`
	Tank01APIKey     string        `yaml:"tank01_api_key"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// DefaultConfig uses ESPN rosters and reads API keys from the environment.
func DefaultConfig() Config {
	return Config{
		RosterSource:     string(clients.ExternalSourceESPN),
		SportRadarAPIKey: os.Getenv("SPORTRADAR_API_KEY"),
		Tank01APIKey:     os.Getenv("TANK01_API_KEY"),
		RequestTimeout:   10 * time.Second,
	}
}

// init registers the NFL plugin with the base registry.
func init() {
	plugin := &NFLPlugin{}
	if err := base.RegisterPlugin(Key, plugin); err != nil {
		panic(fmt.Sprintf("Failed to register NFL plugin: %v", err))
	}
}

// decodeConfig lays raw over the defaults.
func decodeConfig(raw map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return Config{}, fmt.Errorf("nfl: marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("nfl: parse config: %w", err)
	}
	return cfg, nil
}

// Init initializes the plugin, loading the catalog and creating the API clients.
func (p *NFLPlugin) Init(raw map[string]interface{}) error {
	cfg, err := decodeConfig(raw)
	if err != nil {
		return err
	}

	catalog, err := teams.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("nfl: %w", err)
	}

	rosters, err := newRosterProvider(cfg, catalog)
	if err != nil {
		return err
	}

	var stats base.StatsProvider
	if cfg.Tank01APIKey != "" {
		client := tank01_client.NewTank01Client(cfg.Tank01APIKey)
		client.SetTimeout(cfg.RequestTimeout)
		stats = client
	} else {
		log.Warn().Msg("nfl: no Tank01 API key, fantasy points will show as unavailable")
	}

	p.config = cfg
	p.catalog = catalog
	p.rosters = rosters
	p.stats = stats

	log.Info().
		Str("roster_source", cfg.RosterSource).
		Int("teams", catalog.Len()).
		Bool("stats", stats != nil).
		Msg("nfl plugin initialized")
	return nil
}

func newRosterProvider(cfg Config, catalog *teams.Catalog) (base.RosterProvider, error) {
	source := clients.ExternalSource(cfg.RosterSource)
	switch source {
	case clients.ExternalSourceESPN:
		if err := clients.ValidateExternalSource(source, clients.SourceKindRoster, ""); err != nil {
			return nil, fmt.Errorf("nfl: %w", err)
		}
		client := espn_client.NewESPNClient()
		client.SetTimeout(cfg.RequestTimeout)
		return client, nil
	case clients.ExternalSourceSportRadar:
		if err := clients.ValidateExternalSource(source, clients.SourceKindRoster, cfg.SportRadarAPIKey); err != nil {
			return nil, fmt.Errorf("nfl: %w", err)
		}
		client := sport_radar_client.NewSportRadarClient(cfg.SportRadarAPIKey)
		client.SetTimeout(cfg.RequestTimeout)
		return sport_radar_client.NewRosterProvider(client, catalog), nil
	default:
		return nil, fmt.Errorf("nfl: unsupported roster source %q", cfg.RosterSource)
	}
}

func (p *NFLPlugin) Teams() *teams.Catalog { return p.catalog }

func (p *NFLPlugin) Rosters() base.RosterProvider { return p.rosters }

func (p *NFLPlugin) Stats() base.StatsProvider { return p.stats }

func (p *NFLPlugin) Config() Config { return p.config }
