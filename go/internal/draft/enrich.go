package draft

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// Enricher resolves fantasy points for the players of a full roster.
type Enricher struct {
	stats StatsProvider
	teams TeamCatalog
}

// NewEnricher builds an enricher. teams may be nil; DEF slots then use the
// slot's display name as the team name.
func NewEnricher(stats StatsProvider, teams TeamCatalog) *Enricher {
	return &Enricher{stats: stats, teams: teams}
}

// LookupName is the name a slot is resolved by at the stats provider.
func (e *Enricher) LookupName(p *models.PlayerSlot) string {
	if p.OriginalPosition != models.DefensePosition && p.AssignedSlot != models.SlotDEF {
		return p.DisplayName
	}
	teamName := p.DisplayName
	if e.teams != nil {
		if team, err := e.teams.Get(strings.TrimPrefix(p.ExternalID, "DEF-")); err == nil {
			teamName = team.Name
		}
	}
	return teamName + " Defense"
}

// Resolve returns updated copies of every slot of a full roster whose
// points are still unknown. Resolved slots are skipped without any fetch,
// so calling it on an enriched roster returns nothing.
func (e *Enricher) Resolve(ctx context.Context, slots models.RosterSlots) map[models.Slot]*models.PlayerSlot {
	pending := pendingPoints(slots)
	if len(pending) == 0 {
		return nil
	}

	out := make(map[models.Slot]*models.PlayerSlot, len(pending))
	for _, slot := range pending {
		if ctx.Err() != nil {
			break
		}
		updated := slots[slot].Clone()
		e.resolveOne(ctx, updated)
		out[slot] = updated
	}
	return out
}

func (e *Enricher) resolveOne(ctx context.Context, p *models.PlayerSlot) {
	name := e.LookupName(p)
	logger := log.With().Str("player", name).Str("slot", string(p.AssignedSlot)).Logger()

	id, found, err := e.stats.ResolvePlayerExternalID(ctx, name)
	if err != nil || !found {
		if err != nil {
			logger.Warn().Err(err).Msg("stats id lookup failed")
		}
		p.PointsTotal = models.UnavailablePoints()
		p.StatsDetail = nil
		return
	}

	stats, err := e.stats.FetchLastGameStats(ctx, id)
	if err != nil || stats == nil {
		if err != nil {
			logger.Warn().Err(err).Str("stats_id", id).Msg("last game stats fetch failed")
		}
		p.PointsTotal = models.UnavailablePoints()
		p.StatsDetail = nil
		return
	}

	p.PointsTotal = &models.Points{Value: stats.PointsTotal}
	p.StatsDetail = stats.StatsDetail
	logger.Debug().Float64("points", stats.PointsTotal).Msg("resolved fantasy points")
}
