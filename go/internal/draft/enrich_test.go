package draft

import (
	"context"
	"testing"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// fullRoster returns a filled roster built from team's players, with the
// team defense in DEF.
func fullRoster(team models.Team) models.RosterSlots {
	ps := testRosters[team.ID]
	slots := models.NewRosterSlots()
	slots[models.SlotQB] = ps[0].ToSlot(models.SlotQB)
	slots[models.SlotRB] = ps[1].ToSlot(models.SlotRB)
	slots[models.SlotFlex] = ps[2].ToSlot(models.SlotFlex)
	slots[models.SlotWR1] = ps[3].ToSlot(models.SlotWR1)
	slots[models.SlotWR2] = ps[4].ToSlot(models.SlotWR2)
	slots[models.SlotTE] = ps[5].ToSlot(models.SlotTE)
	slots[models.SlotK] = ps[6].ToSlot(models.SlotK)
	slots[models.SlotDEF] = team.DefensePlayer().ToSlot(models.SlotDEF)
	return slots
}

func TestEnricher_LookupName(t *testing.T) {
	e := NewEnricher(newFakeStats(), newTestCatalog(t))

	if got := e.LookupName(chiefs.DefensePlayer().ToSlot(models.SlotDEF)); got != "Kansas City Chiefs Defense" {
		t.Errorf("defense lookup = %q", got)
	}
	if got := e.LookupName(player("201", "Patrick Mahomes", "QB").ToSlot(models.SlotQB)); got != "Patrick Mahomes" {
		t.Errorf("player lookup = %q", got)
	}

	// Without a catalog the slot's own name is used.
	bare := NewEnricher(newFakeStats(), nil)
	def := &models.PlayerSlot{ExternalID: "DEF-99", DisplayName: "Unknown Team", OriginalPosition: models.DefensePosition, AssignedSlot: models.SlotDEF}
	if got := bare.LookupName(def); got != "Unknown Team Defense" {
		t.Errorf("uncatalogued defense lookup = %q", got)
	}
}

func TestEnricher_Resolve(t *testing.T) {
	stats := newFakeStats()
	stats.ids["Patrick Mahomes"] = "3139477"
	stats.points["3139477"] = 24.5
	stats.ids["Kansas City Chiefs Defense"] = "DEF-KC"
	// Resolvable but without a recent game.
	stats.ids["Travis Kelce"] = "15847"

	e := NewEnricher(stats, newTestCatalog(t))

	if got := e.Resolve(context.Background(), models.NewRosterSlots()); got != nil {
		t.Errorf("partial roster resolved %d slots, want none", len(got))
	}

	slots := fullRoster(chiefs)
	got := e.Resolve(context.Background(), slots)
	if len(got) != len(models.AllSlots) {
		t.Fatalf("resolved %d slots, want %d", len(got), len(models.AllSlots))
	}
	if qb := got[models.SlotQB]; qb.PointsTotal == nil || qb.PointsTotal.Value != 24.5 || len(qb.StatsDetail) == 0 {
		t.Errorf("QB = %+v, want 24.5 points with detail", qb)
	}
	for _, slot := range []models.Slot{models.SlotTE, models.SlotDEF, models.SlotK} {
		if p := got[slot]; p.PointsTotal == nil || !p.PointsTotal.Unavailable {
			t.Errorf("%s points = %v, want unavailable", slot, p.PointsTotal)
		}
	}
	if slots[models.SlotQB].PointsTotal != nil {
		t.Error("Resolve modified its input")
	}

	// Already resolved slots are not fetched again.
	for slot, p := range got {
		slots[slot] = p
	}
	resolves, fetches := stats.counts()
	if again := e.Resolve(context.Background(), slots); len(again) != 0 {
		t.Errorf("second resolve returned %d slots", len(again))
	}
	if r, f := stats.counts(); r != resolves || f != fetches {
		t.Errorf("second resolve fetched again: %d/%d -> %d/%d", resolves, fetches, r, f)
	}
}

func TestEnrichFullRosters(t *testing.T) {
	stats := newFakeStats()
	stats.ids["Kirk Cousins"] = "14880"
	stats.points["14880"] = 18.2

	cfg := newTestConfig(t)
	cfg.Stats = stats
	app, adapter := newLocalApp(t, cfg)
	ctx := context.Background()

	if err := adapter.CommitPlayerRecord(ctx, models.SeatOne, models.PlayerRecordUpdate{Slots: fullRoster(falcons)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := app.EnrichFullRosters(ctx); err != nil {
		t.Fatalf("EnrichFullRosters: %v", err)
	}

	doc := snapshot(t, app)
	one := doc.Record(models.SeatOne).RosterSlots
	if p := one[models.SlotQB].PointsTotal; p == nil || p.Value != 18.2 {
		t.Errorf("QB points = %v, want 18.2", p)
	}
	for _, slot := range models.AllSlots {
		if one[slot].PointsTotal == nil {
			t.Errorf("%s still pending", slot)
		}
	}
	if one[models.SlotQB].ExternalID != "101" {
		t.Error("enrichment replaced the slot's player")
	}

	resolves, fetches := stats.counts()
	if err := app.EnrichFullRosters(ctx); err != nil {
		t.Fatalf("second EnrichFullRosters: %v", err)
	}
	if r, f := stats.counts(); r != resolves || f != fetches {
		t.Errorf("second run fetched again: %d/%d -> %d/%d", resolves, fetches, r, f)
	}
	if v := snapshot(t, app).Version; v != doc.Version {
		t.Errorf("second run wrote: version %d -> %d", doc.Version, v)
	}
}

func TestEnrichFullRosters_NoStatsProvider(t *testing.T) {
	app, _ := newLocalApp(t, newTestConfig(t))
	if err := app.EnrichFullRosters(context.Background()); err != nil {
		t.Errorf("EnrichFullRosters without a stats provider: %v", err)
	}
}

func TestAutoEnrich(t *testing.T) {
	stats := newFakeStats()
	stats.ids["Patrick Mahomes"] = "3139477"
	stats.points["3139477"] = 31

	cfg := newTestConfig(t)
	cfg.Stats = stats
	cfg.AutoEnrich = true
	app, adapter := newLocalApp(t, cfg)
	ctx := context.Background()

	if err := adapter.CommitPlayerRecord(ctx, models.SeatTwo, models.PlayerRecordUpdate{Slots: fullRoster(chiefs)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Close waits for the background run.
	app.Close()

	doc, err := adapter.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	two := doc.Record(models.SeatTwo).RosterSlots
	if p := two[models.SlotQB].PointsTotal; p == nil || p.Value != 31 {
		t.Errorf("QB points = %v, want 31", p)
	}
	if len(pendingPoints(two)) != 0 {
		t.Errorf("pending after auto enrichment: %v", pendingPoints(two))
	}
	if len(pendingPoints(doc.Record(models.SeatOne).RosterSlots)) != 0 {
		t.Error("empty seat reported pending points")
	}
}
