package draft

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/roster"
)

// SyncAdapter defines what the app layer needs from a sync strategy
type SyncAdapter interface {
	// LocalSeat is the seat this client controls: SeatBoth in hot-seat mode,
	// SeatNone for observers.
	LocalSeat() models.Seat
	Mode() models.SyncMode
	Snapshot(ctx context.Context) (models.SharedDocument, error)
	Commit(ctx context.Context, patch models.Patch) error
	CommitPlayerRecord(ctx context.Context, seat models.Seat, upd models.PlayerRecordUpdate) error
	CommitSharedState(ctx context.Context, upd models.SharedStateUpdate) error
	Subscribe(fn func(models.SharedDocument)) (unsubscribe func())
	Close() error
}

// RosterProvider defines what the app layer needs to fetch team rosters
type RosterProvider interface {
	FetchTeamRoster(ctx context.Context, teamID string) ([]models.ExternalPlayer, error)
}

// StatsProvider defines what the app layer needs to resolve fantasy points
type StatsProvider interface {
	ResolvePlayerExternalID(ctx context.Context, displayName string) (string, bool, error)
	FetchLastGameStats(ctx context.Context, id string) (*models.GameStats, error)
}

// TeamCatalog defines what the app layer needs from the team catalog
type TeamCatalog interface {
	Len() int
	Get(id string) (models.Team, error)
	Random(rng *rand.Rand) models.Team
}

// StateChanged is emitted for every snapshot the sync adapter delivers.
type StateChanged struct {
	Snapshot  models.SharedDocument
	LocalSeat models.Seat
}

// DraftOutcome is the result of DraftPlayer: either an immediate assignment
// or the open slots the caller must choose between.
type DraftOutcome struct {
	Assigned bool          `json:"assigned"`
	Slot     models.Slot   `json:"slot,omitempty"`
	Choices  []models.Slot `json:"choices,omitempty"`
}

// Config carries the optional collaborators of an App.
type Config struct {
	SessionID string
	Teams     TeamCatalog
	Rosters   RosterProvider
	Stats     StatsProvider
	// Planner defaults to a RandomStrategy over Teams and Rosters.
	Planner AutoPickStrategy
	Rand    *rand.Rand
	Metrics MetricsCollector
	// AutoEnrich resolves fantasy points in the background whenever a
	// delivered snapshot holds a full roster this client controls.
	AutoEnrich    bool
	EnrichTimeout time.Duration
	CommitRetries int
}

// App is the draft state machine. It never holds state of its own: every
// decision is recomputed from the latest snapshot of the sync adapter.
type App struct {
	sync     SyncAdapter
	teams    TeamCatalog
	rosters  RosterProvider
	planner  AutoPickStrategy
	enricher *Enricher
	metrics  MetricsCollector
	logger   zerolog.Logger

	autoEnrich    bool
	enrichTimeout time.Duration
	retries       int

	// mu serializes this client's operations.
	mu sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand

	subsMu  sync.RWMutex
	subs    map[int]func(StateChanged)
	nextSub int

	enrichMu  sync.Mutex
	enriching map[models.Seat]bool
	enrichWG  sync.WaitGroup

	unsubscribe func()
}

// NewApp creates a new draft App and subscribes it to the adapter.
func NewApp(sync SyncAdapter, cfg Config) *App {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	planner := cfg.Planner
	if planner == nil && cfg.Teams != nil && cfg.Rosters != nil {
		planner = NewRandomStrategyWithRand(cfg.Teams, cfg.Rosters, rand.New(rand.NewSource(rng.Int63())))
	}
	var enricher *Enricher
	if cfg.Stats != nil {
		enricher = NewEnricher(cfg.Stats, cfg.Teams)
	}
	retries := cfg.CommitRetries
	if retries <= 0 {
		retries = 3
	}
	enrichTimeout := cfg.EnrichTimeout
	if enrichTimeout <= 0 {
		enrichTimeout = 2 * time.Minute
	}

	a := &App{
		sync:          sync,
		teams:         cfg.Teams,
		rosters:       cfg.Rosters,
		planner:       planner,
		enricher:      enricher,
		metrics:       metrics,
		logger:        log.With().Str("session_id", cfg.SessionID).Logger(),
		autoEnrich:    cfg.AutoEnrich && enricher != nil,
		enrichTimeout: enrichTimeout,
		retries:       retries,
		rng:           rng,
		subs:          make(map[int]func(StateChanged)),
		enriching:     make(map[models.Seat]bool),
	}
	a.unsubscribe = sync.Subscribe(a.onSnapshot)
	return a
}

// Close detaches from the adapter and waits for background enrichment.
// It does not close the adapter.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.enrichWG.Wait()
}

// LocalSeat reports the seat this client controls.
func (a *App) LocalSeat() models.Seat {
	return a.sync.LocalSeat()
}

// Mode reports the sync mode of the underlying adapter.
func (a *App) Mode() models.SyncMode {
	return a.sync.Mode()
}

// Snapshot returns the latest full document.
func (a *App) Snapshot(ctx context.Context) (models.SharedDocument, error) {
	return a.sync.Snapshot(ctx)
}

// Subscribe registers fn for state-changed events. Handlers run on the
// adapter's delivery path and must not call back into the App synchronously.
func (a *App) Subscribe(fn func(StateChanged)) (unsubscribe func()) {
	a.subsMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.subsMu.Unlock()

	return func() {
		a.subsMu.Lock()
		delete(a.subs, id)
		a.subsMu.Unlock()
	}
}

func (a *App) onSnapshot(doc models.SharedDocument) {
	ev := StateChanged{Snapshot: doc, LocalSeat: a.sync.LocalSeat()}

	a.subsMu.RLock()
	handlers := make([]func(StateChanged), 0, len(a.subs))
	for _, fn := range a.subs {
		handlers = append(handlers, fn)
	}
	a.subsMu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}

	if a.autoEnrich {
		for _, seat := range a.controlledSeats() {
			if len(pendingPoints(doc.Record(seat).RosterSlots)) > 0 {
				a.startEnrichment(seat)
			}
		}
	}
}

// authorize rejects requests for seats this client does not own.
func (a *App) authorize(seat models.Seat) error {
	if err := checkSeat(seat); err != nil {
		return err
	}
	local := a.sync.LocalSeat()
	if local != models.SeatBoth && local != seat {
		return ErrNotLocalSeat
	}
	return nil
}

func (a *App) controlledSeats() []models.Seat {
	local := a.sync.LocalSeat()
	if local == models.SeatBoth {
		return models.Seats
	}
	if local.Valid() {
		return []models.Seat{local}
	}
	return nil
}

// observe logs and records the outcome of one operation.
func (a *App) observe(op string, seat models.Seat, start time.Time, err error) {
	outcome := outcomeOf(err)
	a.metrics.RecordTransition(op, outcome, time.Since(start))

	ev := a.logger.Debug()
	switch outcome {
	case "rejected", "transient":
		ev = a.logger.Info().Err(err)
	case "silent":
		ev = a.logger.Debug().Err(err)
	case "error":
		ev = a.logger.Error().Err(err)
	}
	ev.Str("op", op).Int("seat", int(seat)).Str("outcome", outcome).Msg("draft transition")
}

// mutate reads the latest snapshot, lets decide validate it and build a
// patch, and commits that patch conditioned on the snapshot version. When
// another writer got in first, the decision is re-made from the new
// snapshot, so a lost race surfaces as an ordinary rejection.
func (a *App) mutate(ctx context.Context, op string, decide func(doc models.SharedDocument) (models.Patch, error)) error {
	for attempt := 0; ; attempt++ {
		doc, err := a.sync.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		patch, err := decide(doc)
		if err != nil {
			return err
		}
		if patch.Empty() {
			return nil
		}
		patch.IfVersion = doc.Version

		err = a.sync.Commit(ctx, patch)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrVersionConflict) || attempt >= a.retries {
			return fmt.Errorf("failed to commit %s: %w", op, err)
		}
		a.metrics.RecordCommitConflict(op)
		a.logger.Debug().Str("op", op).Int("attempt", attempt+1).Msg("snapshot moved, re-validating")
	}
}

func (a *App) randomAvatar() string {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return Avatars[a.rng.Intn(len(Avatars))]
}

// ConfirmName sets the seat's name, gives it an avatar if it has none and
// marks setup as started. The turn never changes.
func (a *App) ConfirmName(ctx context.Context, seat models.Seat, name string) (err error) {
	start := time.Now()
	defer func() { a.observe("confirm_name", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	avatar := a.randomAvatar()
	return a.mutate(ctx, "confirm_name", func(doc models.SharedDocument) (models.Patch, error) {
		upd := models.PlayerRecordUpdate{
			Name:         &name,
			SetupStarted: models.Ptr(true),
		}
		if doc.Record(seat).AvatarRef == "" {
			upd.AvatarRef = &avatar
		}
		return withPhase(doc, models.SeatPatch(seat, upd)), nil
	})
}

// SelectAvatar sets the seat's avatar to one of the known avatars.
func (a *App) SelectAvatar(ctx context.Context, seat models.Seat, avatarRef string) (err error) {
	start := time.Now()
	defer func() { a.observe("select_avatar", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return err
	}
	if !isKnownAvatar(avatarRef) {
		return fmt.Errorf("%w: %s", ErrUnknownAvatar, avatarRef)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.sync.CommitPlayerRecord(ctx, seat, models.PlayerRecordUpdate{AvatarRef: &avatarRef})
}

// BeginTeamRoll starts a new spin: the current roster and the one-pick gate
// are cleared. The caller attaches the new roster with SetTeamRoster.
func (a *App) BeginTeamRoll(ctx context.Context, seat models.Seat) (err error) {
	start := time.Now()
	defer func() { a.observe("begin_team_roll", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.beginSpin(ctx, "begin_team_roll", seat)
}

func (a *App) beginSpin(ctx context.Context, op string, seat models.Seat) error {
	return a.mutate(ctx, op, func(doc models.SharedDocument) (models.Patch, error) {
		if err := checkTurn(doc, seat); err != nil {
			return models.Patch{}, err
		}
		return models.SeatPatch(seat, models.PlayerRecordUpdate{
			ClearTeamRoster:    true,
			HasDraftedThisSpin: models.Ptr(false),
		}), nil
	})
}

// SetTeamRoster attaches fetched roster data to the seat. No turn check:
// it completes a roll already in flight.
func (a *App) SetTeamRoster(ctx context.Context, seat models.Seat, tr models.TeamRoster) (err error) {
	start := time.Now()
	defer func() { a.observe("set_team_roster", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.sync.CommitPlayerRecord(ctx, seat, models.PlayerRecordUpdate{TeamRoster: &tr})
}

// RollTeam begins a spin, picks a random team and attaches its roster. A
// failed fetch leaves the seat without a roster and can simply be retried.
func (a *App) RollTeam(ctx context.Context, seat models.Seat) (tr models.TeamRoster, err error) {
	start := time.Now()
	defer func() { a.observe("roll_team", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return models.TeamRoster{}, err
	}
	if a.teams == nil || a.rosters == nil {
		return models.TeamRoster{}, fmt.Errorf("%w: no roster source configured", ErrRosterUnavailable)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.beginSpin(ctx, "roll_team", seat); err != nil {
		return models.TeamRoster{}, err
	}

	a.rngMu.Lock()
	team := a.teams.Random(a.rng)
	a.rngMu.Unlock()

	players, err := a.rosters.FetchTeamRoster(ctx, team.ID)
	if err != nil {
		return models.TeamRoster{}, fmt.Errorf("%w: %s: %v", ErrRosterUnavailable, team.Name, err)
	}
	tr = models.TeamRoster{
		TeamID:   team.ID,
		TeamName: team.Name,
		LogoRef:  team.LogoRef,
		Players:  BuildPool(team, players),
	}
	if err := a.sync.CommitPlayerRecord(ctx, seat, models.PlayerRecordUpdate{TeamRoster: &tr}); err != nil {
		return models.TeamRoster{}, fmt.Errorf("failed to attach roster: %w", err)
	}
	return tr, nil
}

// DraftPlayer validates a pick. Positions with a single eligible slot are
// assigned right away; flex-capable positions return the open eligible
// slots and the caller finishes with AssignToSlot.
func (a *App) DraftPlayer(ctx context.Context, seat models.Seat, player models.ExternalPlayer) (out DraftOutcome, err error) {
	start := time.Now()
	defer func() { a.observe("draft_player", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return DraftOutcome{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.sync.Snapshot(ctx)
	if err != nil {
		return DraftOutcome{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	player, err = rosteredPlayer(doc, seat, player)
	if err != nil {
		return DraftOutcome{}, err
	}
	if err := validatePick(doc, seat, player); err != nil {
		return DraftOutcome{}, err
	}

	eligible := roster.EligibleSlotsFor(player.Position)
	if len(eligible) > 1 {
		return DraftOutcome{Choices: roster.OpenSlotsFor(doc.Record(seat).RosterSlots, player.Position)}, nil
	}

	slot := eligible[0]
	if err := a.assign(ctx, "draft_player", seat, player, slot, false); err != nil {
		return DraftOutcome{}, err
	}
	return DraftOutcome{Assigned: true, Slot: slot}, nil
}

// AssignToSlot commits a pick into slot after re-checking every draft rule
// against the latest snapshot. The player must be on the seat's rolled team.
func (a *App) AssignToSlot(ctx context.Context, seat models.Seat, player models.ExternalPlayer, slot models.Slot) (err error) {
	start := time.Now()
	defer func() { a.observe("assign_to_slot", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return err
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: unknown slot %q", ErrIneligibleSlot, slot)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.assign(ctx, "assign_to_slot", seat, player, slot, false)
}

// assign commits a pick. Manual picks are resolved against the rolled team
// and keep it attached; auto picks come from the planner and clear it.
func (a *App) assign(ctx context.Context, op string, seat models.Seat, player models.ExternalPlayer, slot models.Slot, auto bool) error {
	return a.mutate(ctx, op, func(doc models.SharedDocument) (models.Patch, error) {
		picked := player
		if !auto {
			var err error
			if picked, err = rosteredPlayer(doc, seat, player); err != nil {
				return models.Patch{}, err
			}
		}
		if err := validateAssignment(doc, seat, picked, slot); err != nil {
			return models.Patch{}, err
		}
		return assignmentPatch(doc, seat, picked, slot, auto), nil
	})
}

// AutoDraftOne starts a spin and drafts one random legal player. When the
// planner comes up empty the turn does not change.
func (a *App) AutoDraftOne(ctx context.Context, seat models.Seat) (pick Pick, err error) {
	start := time.Now()
	defer func() { a.observe("auto_draft", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return Pick{}, err
	}
	if a.planner == nil {
		return Pick{}, fmt.Errorf("%w: no roster source configured", ErrNoPlayerFound)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.beginSpin(ctx, "auto_draft", seat); err != nil {
		return Pick{}, err
	}

	doc, err := a.sync.Snapshot(ctx)
	if err != nil {
		return Pick{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	pick, err = a.planner.Plan(ctx, doc.Record(seat).RosterSlots, roster.DraftedIDs(doc))
	if err != nil {
		if errors.Is(err, ErrNoPlayerFound) || errors.Is(err, ErrRosterFull) {
			return Pick{}, err
		}
		return Pick{}, fmt.Errorf("%w: %v", ErrNoPlayerFound, err)
	}

	if err := a.assign(ctx, "auto_draft", seat, pick.Player, pick.Slot, true); err != nil {
		return Pick{}, err
	}
	return pick, nil
}

// ResetSeat clears the seat back to defaults. When both seats end up
// nameless the shared state resets too; otherwise a named opponent gets
// the turn. Players on the cleared roster become draftable again.
func (a *App) ResetSeat(ctx context.Context, seat models.Seat) (err error) {
	start := time.Now()
	defer func() { a.observe("reset_seat", seat, start, err) }()

	if err := a.authorize(seat); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.mutate(ctx, "reset_seat", func(doc models.SharedDocument) (models.Patch, error) {
		return resetPatch(doc, seat), nil
	})
}

// EnrichFullRosters resolves fantasy points for every full roster this
// client controls. Already resolved slots cost nothing.
func (a *App) EnrichFullRosters(ctx context.Context) error {
	if a.enricher == nil {
		return nil
	}
	var errs []error
	for _, seat := range a.controlledSeats() {
		if err := a.enrichSeat(ctx, seat); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) startEnrichment(seat models.Seat) {
	a.enrichMu.Lock()
	if a.enriching[seat] {
		a.enrichMu.Unlock()
		return
	}
	a.enriching[seat] = true
	a.enrichWG.Add(1)
	a.enrichMu.Unlock()

	go func() {
		defer a.enrichWG.Done()
		defer func() {
			a.enrichMu.Lock()
			delete(a.enriching, seat)
			a.enrichMu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.enrichTimeout)
		defer cancel()
		if err := a.enrichSeat(ctx, seat); err != nil {
			a.logger.Warn().Err(err).Int("seat", int(seat)).Msg("background points enrichment failed")
		}
	}()
}

// enrichSeat fetches points outside the operation lock, then writes back
// only to slots that still hold the same player without points.
func (a *App) enrichSeat(ctx context.Context, seat models.Seat) error {
	doc, err := a.sync.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	resolved := a.enricher.Resolve(ctx, doc.Record(seat).RosterSlots)
	if len(resolved) == 0 {
		return nil
	}

	unavailable := 0
	for _, p := range resolved {
		if p.PointsTotal != nil && p.PointsTotal.Unavailable {
			unavailable++
		}
	}
	a.metrics.RecordEnrichment(len(resolved)-unavailable, unavailable)

	return a.mutate(ctx, "enrich_points", func(doc models.SharedDocument) (models.Patch, error) {
		current := doc.Record(seat).RosterSlots
		slots := make(map[models.Slot]*models.PlayerSlot)
		for slot, p := range resolved {
			if cur := current[slot]; cur != nil && cur.ExternalID == p.ExternalID && cur.PointsTotal == nil {
				slots[slot] = p
			}
		}
		if len(slots) == 0 {
			return models.Patch{}, nil
		}
		return models.SeatPatch(seat, models.PlayerRecordUpdate{Slots: slots}), nil
	})
}
