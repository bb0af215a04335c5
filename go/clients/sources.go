package clients

import "fmt"

// ExternalSource represents different external data providers
type ExternalSource string

const (
	// ExternalSourceESPN is the public ESPN site API (rosters)
	ExternalSourceESPN ExternalSource = "espn"

	// ExternalSourceSportRadar is the SportRadar NFL API (rosters)
	ExternalSourceSportRadar ExternalSource = "sportradar"

	// ExternalSourceTank01 is the Tank01 RapidAPI feed (player lookup and game stats)
	ExternalSourceTank01 ExternalSource = "tank01"
)

// SourceKind is what a provider can be used for.
type SourceKind string

const (
	SourceKindRoster SourceKind = "roster"
	SourceKindStats  SourceKind = "stats"
)

// ExternalSourceConfig describes a provider
type ExternalSourceConfig struct {
	Source         ExternalSource `json:"source"`
	Name           string         `json:"name"`
	Kind           SourceKind     `json:"kind"`
	RequiresAPIKey bool           `json:"requires_api_key"`
}

// GetExternalSources returns all known external sources
func GetExternalSources() map[ExternalSource]ExternalSourceConfig {
	return map[ExternalSource]ExternalSourceConfig{
		ExternalSourceESPN: {
			Source: ExternalSourceESPN,
			Name:   "ESPN API",
			Kind:   SourceKindRoster,
		},
		ExternalSourceSportRadar: {
			Source:         ExternalSourceSportRadar,
			Name:           "SportRadar",
			Kind:           SourceKindRoster,
			RequiresAPIKey: true,
		},
		ExternalSourceTank01: {
			Source:         ExternalSourceTank01,
			Name:           "Tank01 NFL",
			Kind:           SourceKindStats,
			RequiresAPIKey: true,
		},
	}
}

// ValidateExternalSource checks that source exists and serves kind, and that
// an API key is present when the source needs one.
func ValidateExternalSource(source ExternalSource, kind SourceKind, apiKey string) error {
	cfg, ok := GetExternalSources()[source]
	if !ok {
		return fmt.Errorf("unknown external source %q", source)
	}
	if cfg.Kind != kind {
		return fmt.Errorf("external source %q provides %s data, not %s", source, cfg.Kind, kind)
	}
	if cfg.RequiresAPIKey && apiKey == "" {
		return fmt.Errorf("external source %q requires an API key", source)
	}
	return nil
}
