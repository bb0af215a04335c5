package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SYNC_BACKEND", "")
	t.Setenv("SEAT_BACKEND", "")

	config, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.Sync.Backend != BackendMemory || config.Seats.Backend != BackendSQLite {
		t.Errorf("backends = %s/%s", config.Sync.Backend, config.Seats.Backend)
	}
	if len(config.Sports.EnabledPlugins) != 1 || config.Sports.EnabledPlugins[0] != "nfl" {
		t.Errorf("plugins = %v", config.Sports.EnabledPlugins)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("SYNC_BACKEND", "")
	t.Setenv("SEAT_BACKEND", "memory")
	t.Setenv("NATS_URL", "")
	t.Setenv("SESSION_IDLE_TIMEOUT", "")
	path := writeConfig(t, `
sync:
  backend: nats
  nats_url: nats://queue:4222
seats:
  backend: postgres
session:
  default_mode: local
  idle_timeout: 5m
journal:
  enabled: true
sports:
  enabled_plugins: [nfl]
  plugins:
    nfl:
      roster_source: sportradar
`)

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.Sync.Backend != BackendNATS || config.Sync.NATSURL != "nats://queue:4222" {
		t.Errorf("sync = %+v", config.Sync)
	}
	if config.Seats.Backend != BackendMemory {
		t.Errorf("SEAT_BACKEND did not override the file: %s", config.Seats.Backend)
	}
	if config.Session.IdleTimeout != 5*time.Minute || config.Session.DefaultMode != "local" {
		t.Errorf("session = %+v", config.Session)
	}
	if got := config.Sports.Plugins["nfl"]["roster_source"]; got != "sportradar" {
		t.Errorf("nfl roster_source = %v", got)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	t.Setenv("SYNC_BACKEND", "")
	t.Setenv("SEAT_BACKEND", "")

	tests := []struct {
		name string
		body string
	}{
		{"unknown sync backend", "sync: {backend: redis}"},
		{"unknown seat backend", "seats: {backend: floppy}"},
		{"nothing enabled", "sync: {backend: none}\nseats: {backend: none}"},
		{"bad mode", "session: {default_mode: mirrored}"},
		{"journal without nats", "journal: {enabled: true}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("loadConfig succeeded")
			}
		})
	}
}
