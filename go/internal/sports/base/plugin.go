package base

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/teams"
)

// RosterProvider fetches the current roster of a catalog team.
type RosterProvider interface {
	FetchTeamRoster(ctx context.Context, teamID string) ([]models.ExternalPlayer, error)
}

// StatsProvider resolves players and their latest game stats.
type StatsProvider interface {
	ResolvePlayerExternalID(ctx context.Context, displayName string) (string, bool, error)
	FetchLastGameStats(ctx context.Context, id string) (*models.GameStats, error)
}

// SportPlugin defines the interface each sport plugin must implement.
type SportPlugin interface {
	// Init configures the plugin from its section of the config file.
	Init(cfg map[string]interface{}) error
	Teams() *teams.Catalog
	Rosters() RosterProvider
	// Stats is nil when no stats source is configured.
	Stats() StatsProvider
}

var (
	registry   = make(map[string]SportPlugin)
	registryMu sync.RWMutex
)

// RegisterPlugin adds a plugin implementation under a key.
// It should be called in each sport plugin's init() function.
// The plugin will be initialized later when retrieved.
func RegisterPlugin(key string, plugin SportPlugin) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if key == "" {
		return fmt.Errorf("plugin key cannot be empty")
	}
	if _, exists := registry[key]; exists {
		return fmt.Errorf("plugin already registered for key %q", key)
	}
	registry[key] = plugin
	return nil
}

// GetPlugin retrieves a plugin by key or returns an error if not found.
func GetPlugin(key string) (SportPlugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	plugin, exists := registry[key]
	if !exists {
		return nil, fmt.Errorf("no sport plugin registered for key %q", key)
	}
	return plugin, nil
}

// InitializePlugin initializes a specific plugin.
func InitializePlugin(key string, cfg map[string]interface{}) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	plugin, exists := registry[key]
	if !exists {
		return fmt.Errorf("no sport plugin registered for key %q", key)
	}
	if err := plugin.Init(cfg); err != nil {
		return fmt.Errorf("failed to init plugin %q: %w", key, err)
	}
	return nil
}

// Registered lists plugin keys in order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for key := range registry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
