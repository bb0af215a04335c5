package draft

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/roster"
)

// AutoPickStrategy finds one legal (player, slot) pair for a roster.
type AutoPickStrategy interface {
	// Plan must never return a player whose id is in drafted.
	Plan(ctx context.Context, slots models.RosterSlots, drafted map[string]models.Seat) (Pick, error)
}

// Pick is a planned auto-draft assignment.
type Pick struct {
	Player   models.ExternalPlayer `json:"player"`
	Slot     models.Slot           `json:"slot"`
	Team     models.Team           `json:"team"`
	Attempts int                   `json:"attempts"`
}

// RandomStrategy rolls random teams and takes the first structurally legal
// player of a shuffled pool. No scoring.
type RandomStrategy struct {
	teams   TeamCatalog
	rosters RosterProvider

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy(teams TeamCatalog, rosters RosterProvider) *RandomStrategy {
	// Create a new Rand with its own Source, seeded once:
	src := rand.NewSource(time.Now().UnixNano())
	return NewRandomStrategyWithRand(teams, rosters, rand.New(src))
}

// NewRandomStrategyWithRand uses rng for every random choice.
func NewRandomStrategyWithRand(teams TeamCatalog, rosters RosterProvider, rng *rand.Rand) *RandomStrategy {
	return &RandomStrategy{
		teams:   teams,
		rosters: rosters,
		rng:     rng,
	}
}

// MaxAttempts bounds the team fetches of one Plan call.
func (s *RandomStrategy) MaxAttempts() int {
	return 2 * s.teams.Len()
}

// Plan implements AutoPickStrategy. A failed roster fetch counts as an attempt.
func (s *RandomStrategy) Plan(ctx context.Context, slots models.RosterSlots, drafted map[string]models.Seat) (Pick, error) {
	if roster.IsRosterFull(slots) {
		return Pick{}, ErrRosterFull
	}

	maxAttempts := s.MaxAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Pick{}, err
		}

		team := s.randomTeam()
		players, err := s.rosters.FetchTeamRoster(ctx, team.ID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("team_id", team.ID).
				Int("attempt", attempt).
				Msg("auto-pick roster fetch failed")
			continue
		}

		pool := BuildPool(team, players)
		s.mu.Lock()
		player, slot, ok := PlanFromPool(pool, slots, drafted, s.rng.Shuffle)
		s.mu.Unlock()
		if !ok {
			log.Debug().Str("team_id", team.ID).Int("attempt", attempt).Msg("auto-pick pool exhausted")
			continue
		}

		log.Info().
			Str("player_id", player.ExternalID).
			Str("slot", string(slot)).
			Int("attempts", attempt).
			Msg("auto-pick picked player")
		return Pick{Player: player, Slot: slot, Team: team, Attempts: attempt}, nil
	}

	return Pick{}, fmt.Errorf("%w after %d attempts", ErrNoPlayerFound, maxAttempts)
}

func (s *RandomStrategy) randomTeam() models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teams.Random(s.rng)
}

// BuildPool adds the team defense to a fetched roster and drops duplicate ids.
func BuildPool(team models.Team, players []models.ExternalPlayer) []models.ExternalPlayer {
	all := make([]models.ExternalPlayer, 0, len(players)+1)
	all = append(all, players...)
	all = append(all, team.DefensePlayer())

	pool := make([]models.ExternalPlayer, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, p := range all {
		if p.ExternalID == "" || seen[p.ExternalID] {
			continue
		}
		seen[p.ExternalID] = true
		if p.TeamID == "" {
			p.TeamID = team.ID
		}
		pool = append(pool, p)
	}
	return pool
}

// PlanFromPool shuffles pool and returns the first candidate not drafted by
// either seat that has an open eligible slot. pool is not modified.
func PlanFromPool(pool []models.ExternalPlayer, slots models.RosterSlots, drafted map[string]models.Seat, shuffle func(n int, swap func(i, j int))) (models.ExternalPlayer, models.Slot, bool) {
	candidates := append([]models.ExternalPlayer(nil), pool...)
	if shuffle != nil {
		shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	for _, p := range candidates {
		if _, taken := drafted[p.ExternalID]; taken {
			continue
		}
		if slot, ok := roster.FindFirstOpenSlot(slots, p.Position); ok {
			return p, slot, true
		}
	}
	return models.ExternalPlayer{}, "", false
}
