package draft

import (
	"fmt"
	"strings"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/roster"
)

// The functions in this file are pure: they take a snapshot and either
// reject or return the patch that realizes the transition.

func checkSeat(seat models.Seat) error {
	if !seat.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	return nil
}

// checkTurn covers the checks shared by every drafting action.
func checkTurn(doc models.SharedDocument, seat models.Seat) error {
	if doc.State.Phase != models.PhaseDrafting {
		return ErrNotDrafting
	}
	if doc.State.CurrentTurnSeat != seat {
		return ErrWrongTurn
	}
	rec := doc.Record(seat)
	if strings.TrimSpace(rec.Name) == "" {
		return ErrNameRequired
	}
	if roster.IsRosterFull(rec.RosterSlots) {
		return ErrRosterFull
	}
	return nil
}

// rosteredPlayer resolves player against the team the seat rolled and
// returns the roster's own record, so clients cannot relabel a position.
func rosteredPlayer(doc models.SharedDocument, seat models.Seat, player models.ExternalPlayer) (models.ExternalPlayer, error) {
	if doc.State.Phase != models.PhaseDrafting {
		return models.ExternalPlayer{}, ErrNotDrafting
	}
	if doc.State.CurrentTurnSeat != seat {
		return models.ExternalPlayer{}, ErrWrongTurn
	}
	tr := doc.Record(seat).CurrentTeamRoster
	if tr == nil {
		return models.ExternalPlayer{}, fmt.Errorf("%w: no team rolled", ErrPlayerNotOnTeam)
	}
	for _, p := range tr.Players {
		if p.ExternalID == player.ExternalID {
			return p, nil
		}
	}
	return models.ExternalPlayer{}, fmt.Errorf("%w: %s", ErrPlayerNotOnTeam, player.ExternalID)
}

// validatePick applies the draftPlayer checks in order: turn, global
// uniqueness, one pick per spin, fullness, then slot availability.
func validatePick(doc models.SharedDocument, seat models.Seat, player models.ExternalPlayer) error {
	if doc.State.Phase != models.PhaseDrafting {
		return ErrNotDrafting
	}
	if doc.State.CurrentTurnSeat != seat {
		return ErrWrongTurn
	}
	if holder, taken := roster.DraftedIDs(doc)[player.ExternalID]; taken {
		return fmt.Errorf("%w: %s is on seat %d's roster", ErrDuplicatePlayer, player.DisplayName, holder)
	}
	rec := doc.Record(seat)
	if rec.HasDraftedThisSpin {
		return ErrAlreadyDraftedThisSpin
	}
	if strings.TrimSpace(rec.Name) == "" {
		return ErrNameRequired
	}
	if roster.IsRosterFull(rec.RosterSlots) {
		return ErrRosterFull
	}
	if roster.IsPositionUndraftable(rec.RosterSlots, player.Position) {
		return fmt.Errorf("%w: %s", ErrUndraftablePosition, player.Position)
	}
	return nil
}

// validateAssignment is validatePick plus the target slot checks.
func validateAssignment(doc models.SharedDocument, seat models.Seat, player models.ExternalPlayer, slot models.Slot) error {
	if err := validatePick(doc, seat, player); err != nil {
		return err
	}
	if !roster.IsEligible(player.Position, slot) {
		return fmt.Errorf("%w: %s into %s", ErrIneligibleSlot, player.Position, slot)
	}
	if occupant := doc.Record(seat).RosterSlots[slot]; occupant != nil {
		return fmt.Errorf("%w: %s holds %s", ErrSlotOccupied, occupant.DisplayName, slot)
	}
	return nil
}

// assignmentPatch fills the slot, closes the spin, passes the turn and
// re-evaluates the phase. The turn stays put when the other seat has
// nothing left to draft.
func assignmentPatch(doc models.SharedDocument, seat models.Seat, player models.ExternalPlayer, slot models.Slot, clearRoster bool) models.Patch {
	upd := models.PlayerRecordUpdate{
		Slots:              map[models.Slot]*models.PlayerSlot{slot: player.ToSlot(slot)},
		HasDraftedThisSpin: models.Ptr(true),
		ClearTeamRoster:    clearRoster,
	}
	patch := models.SeatPatch(seat, upd)

	next := seat.Other()
	if roster.IsRosterFull(doc.Record(next).RosterSlots) {
		next = seat
	}
	patch.Shared = &models.SharedStateUpdate{CurrentTurnSeat: &next}
	return withPhase(doc, patch)
}

// derivePhase returns the phase a document should be in. It never moves
// backwards; only an explicit reset does that.
func derivePhase(doc models.SharedDocument) models.Phase {
	one, two := doc.Record(models.SeatOne), doc.Record(models.SeatTwo)
	phase := doc.State.Phase
	if phase == "" {
		phase = models.PhaseNameEntry
	}
	if phase == models.PhaseNameEntry && one.Name != "" && two.Name != "" {
		phase = models.PhaseDrafting
	}
	if phase == models.PhaseDrafting && roster.IsRosterFull(one.RosterSlots) && roster.IsRosterFull(two.RosterSlots) {
		phase = models.PhaseComplete
	}
	return phase
}

// withPhase adds a phase change to patch when applying it would trigger one.
func withPhase(doc models.SharedDocument, patch models.Patch) models.Patch {
	after, err := patch.ApplyTo(doc)
	if err != nil {
		return patch
	}
	phase := derivePhase(after)
	if phase == after.State.Phase {
		return patch
	}
	if patch.Shared == nil {
		patch.Shared = &models.SharedStateUpdate{}
	}
	patch.Shared.Phase = &phase
	return patch
}

// resetPatch clears seat. If the other seat is also nameless the whole game
// resets. Otherwise a finished game goes back to DRAFTING and the turn goes
// to whichever seat still has slots to fill, the named opponent first.
func resetPatch(doc models.SharedDocument, seat models.Seat) models.Patch {
	patch := models.SeatPatch(seat, models.PlayerRecordUpdate{Reset: true})
	other := seat.Other()
	if doc.Record(other).Name == "" {
		patch.Shared = &models.SharedStateUpdate{Reset: true}
		return patch
	}
	next := other
	if roster.IsRosterFull(doc.Record(other).RosterSlots) {
		next = seat
	}
	patch.Shared = &models.SharedStateUpdate{CurrentTurnSeat: &next}
	if doc.State.Phase == models.PhaseComplete {
		patch.Shared.Phase = models.Ptr(models.PhaseDrafting)
	}
	return patch
}

// pendingPoints lists the slots of a full roster still waiting for points.
func pendingPoints(slots models.RosterSlots) []models.Slot {
	if !roster.IsRosterFull(slots) {
		return nil
	}
	var pending []models.Slot
	for _, s := range models.AllSlots {
		if p := slots[s]; p != nil && p.PointsTotal == nil {
			pending = append(pending, s)
		}
	}
	return pending
}
