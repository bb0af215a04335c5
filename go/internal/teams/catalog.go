// Package teams loads the catalog of NFL teams a seat can roll.
package teams

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftslots/go/internal/models"
)

//go:embed nfl_teams.yaml
var defaultCatalog []byte

// ErrTeamNotFound is returned for ids missing from the catalog.
var ErrTeamNotFound = errors.New("team not found")

type catalogFile struct {
	Teams []models.Team `yaml:"teams"`
}

// Catalog is an immutable, ordered set of teams.
type Catalog struct {
	teams []models.Team
	byID  map[string]models.Team
}

// Default returns the embedded NFL catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse team catalog: %w", err)
	}
	return New(file.Teams)
}

// New builds a catalog from teams, rejecting blanks and duplicates.
func New(teams []models.Team) (*Catalog, error) {
	if len(teams) == 0 {
		return nil, errors.New("team catalog is empty")
	}
	c := &Catalog{byID: make(map[string]models.Team, len(teams))}
	for _, t := range teams {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" || t.Name == "" {
			return nil, fmt.Errorf("team catalog entry missing id or name: %+v", t)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate team id %q in catalog", t.ID)
		}
		c.byID[t.ID] = t
		c.teams = append(c.teams, t)
	}
	return c, nil
}

// Len returns the number of teams.
func (c *Catalog) Len() int {
	return len(c.teams)
}

// All returns the teams in catalog order.
func (c *Catalog) All() []models.Team {
	return append([]models.Team(nil), c.teams...)
}

// Get looks a team up by id.
func (c *Catalog) Get(id string) (models.Team, error) {
	t, ok := c.byID[id]
	if !ok {
		return models.Team{}, fmt.Errorf("%w: %s", ErrTeamNotFound, id)
	}
	return t, nil
}

// Random picks a team uniformly.
func (c *Catalog) Random(rng *rand.Rand) models.Team {
	return c.teams[rng.Intn(len(c.teams))]
}

// TeamForDefense resolves the team behind a DEF-<teamId> pseudo-player id.
func (c *Catalog) TeamForDefense(externalID string) (models.Team, error) {
	id, ok := strings.CutPrefix(externalID, "DEF-")
	if !ok {
		return models.Team{}, fmt.Errorf("%q is not a team defense id", externalID)
	}
	return c.Get(id)
}
