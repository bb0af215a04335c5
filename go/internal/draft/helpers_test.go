package draft

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/mcdev12/draftslots/go/internal/draft/roomsync"
	"github.com/mcdev12/draftslots/go/internal/draft/seatstore"
	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/teams"
)

var (
	falcons = models.Team{ID: "1", Name: "Atlanta Falcons", Abbreviation: "ATL", LogoRef: "atl.png"}
	chiefs  = models.Team{ID: "12", Name: "Kansas City Chiefs", Abbreviation: "KC", LogoRef: "kc.png"}
)

func player(id, name, pos string) models.ExternalPlayer {
	return models.ExternalPlayer{ExternalID: id, DisplayName: name, Position: pos}
}

// Enough players for one seat's roster per team.
var testRosters = map[string][]models.ExternalPlayer{
	falcons.ID: {
		player("101", "Kirk Cousins", "QB"),
		player("102", "Bijan Robinson", "RB"),
		player("103", "Tyler Allgeier", "RB"),
		player("104", "Drake London", "WR"),
		player("105", "Darnell Mooney", "WR"),
		player("106", "Kyle Pitts", "TE"),
		player("107", "Younghoe Koo", "K"),
	},
	chiefs.ID: {
		player("201", "Patrick Mahomes", "QB"),
		player("202", "Isiah Pacheco", "RB"),
		player("203", "Kareem Hunt", "RB"),
		player("204", "Xavier Worthy", "WR"),
		player("205", "Rashee Rice", "WR"),
		player("206", "Travis Kelce", "TE"),
		player("207", "Harrison Butker", "K"),
	},
}

type fakeRosters struct {
	mu      sync.Mutex
	rosters map[string][]models.ExternalPlayer
	fail    bool
	calls   int
}

func (f *fakeRosters) FetchTeamRoster(ctx context.Context, teamID string) ([]models.ExternalPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("provider unreachable")
	}
	return append([]models.ExternalPlayer(nil), f.rosters[teamID]...), nil
}

func (f *fakeRosters) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStats struct {
	mu           sync.Mutex
	ids          map[string]string
	points       map[string]float64
	resolveCalls int
	statsCalls   int
}

func newFakeStats() *fakeStats {
	return &fakeStats{ids: map[string]string{}, points: map[string]float64{}}
}

func (f *fakeStats) ResolvePlayerExternalID(ctx context.Context, displayName string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	id, ok := f.ids[displayName]
	return id, ok, nil
}

func (f *fakeStats) FetchLastGameStats(ctx context.Context, id string) (*models.GameStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	pts, ok := f.points[id]
	if !ok {
		return nil, errors.New("no games")
	}
	return &models.GameStats{GameID: "20250907_ATL@KC", PointsTotal: pts, StatsDetail: []byte(`{"passYds":"250"}`)}, nil
}

func (f *fakeStats) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls, f.statsCalls
}

func newTestCatalog(t *testing.T) *teams.Catalog {
	t.Helper()
	c, err := teams.New([]models.Team{falcons, chiefs})
	if err != nil {
		t.Fatalf("teams.New: %v", err)
	}
	return c
}

func newTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SessionID: "test",
		Teams:     newTestCatalog(t),
		Rosters:   &fakeRosters{rosters: testRosters},
		Rand:      rand.New(rand.NewSource(7)),
	}
}

// newLocalApp builds a hot-seat App over an in-memory seat store.
func newLocalApp(t *testing.T, cfg Config) (*App, *roomsync.LocalAdapter) {
	t.Helper()
	adapter, err := roomsync.OpenLocal(context.Background(), "test", seatstore.NewMemory())
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	app := NewApp(adapter, cfg)
	t.Cleanup(func() {
		app.Close()
		_ = adapter.Close()
	})
	return app, adapter
}

func snapshot(t *testing.T, app *App) models.SharedDocument {
	t.Helper()
	doc, err := app.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return doc
}

// startDraft confirms both names so the draft is in progress.
func startDraft(t *testing.T, app *App) {
	t.Helper()
	ctx := context.Background()
	if err := app.ConfirmName(ctx, models.SeatOne, "Ann"); err != nil {
		t.Fatalf("ConfirmName(1): %v", err)
	}
	if err := app.ConfirmName(ctx, models.SeatTwo, "Bo"); err != nil {
		t.Fatalf("ConfirmName(2): %v", err)
	}
}

// attachRoster hands seat a rolled team made of players.
func attachRoster(t *testing.T, app *App, seat models.Seat, team models.Team, players ...models.ExternalPlayer) {
	t.Helper()
	tr := models.TeamRoster{TeamID: team.ID, TeamName: team.Name, LogoRef: team.LogoRef, Players: players}
	if err := app.SetTeamRoster(context.Background(), seat, tr); err != nil {
		t.Fatalf("SetTeamRoster(%d): %v", seat, err)
	}
}

// draftInto drafts p for seat and assigns it to slot, rolling a team that
// holds p first so the spin gate is open.
func draftInto(t *testing.T, app *App, seat models.Seat, p models.ExternalPlayer, slot models.Slot) {
	t.Helper()
	ctx := context.Background()
	if err := app.BeginTeamRoll(ctx, seat); err != nil {
		t.Fatalf("BeginTeamRoll(%d): %v", seat, err)
	}
	attachRoster(t, app, seat, falcons, p)
	if err := app.AssignToSlot(ctx, seat, p, slot); err != nil {
		t.Fatalf("AssignToSlot(%d, %s, %s): %v", seat, p.DisplayName, slot, err)
	}
}

// racingAdapter lets a test slip a write in right before the App's next commit.
type racingAdapter struct {
	SyncAdapter
	mu     sync.Mutex
	before func()
}

func (r *racingAdapter) Commit(ctx context.Context, patch models.Patch) error {
	r.mu.Lock()
	hook := r.before
	r.before = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.SyncAdapter.Commit(ctx, patch)
}
