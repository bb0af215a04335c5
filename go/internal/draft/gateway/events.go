package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftslots/go/internal/draft/events"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// DraftEvent represents the base structure for all draft events
type DraftEvent struct {
	ID        string          `json:"id"`         // Event UUID
	SessionID string          `json:"session_id"` // Room code
	Type      EventType       `json:"type"`       // Event type
	Version   uint64          `json:"version"`    // Document version the event was derived from
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of draft event
type EventType string

const (
	EventTypeSnapshot       EventType = "Snapshot"
	EventTypeDraftStarted   EventType = "DraftStarted"
	EventTypeTurnChanged    EventType = "TurnChanged"
	EventTypePickMade       EventType = "PickMade"
	EventTypeDraftCompleted EventType = "DraftCompleted"
	EventTypeAnnouncement   EventType = "Announcement"
)

// NewDraftEvent wraps payload in an event envelope.
func NewDraftEvent(sessionID string, eventType EventType, version uint64, at time.Time, payload any) (*DraftEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &DraftEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      eventType,
		Version:   version,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *DraftEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeSnapshot:
		var payload events.SnapshotPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeDraftStarted:
		var payload events.DraftStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTurnChanged:
		var payload events.TurnChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePickMade:
		var payload events.PickMadePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeDraftCompleted:
		var payload events.DraftCompletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAnnouncement:
		var payload events.AnnouncementPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}

// derivedEventNamespace seeds ids of events derived from documents.
var derivedEventNamespace = uuid.MustParse("6f1c2b8e-4d0a-4b8e-9a57-3c1f0e2d9b41")

// derivedEventID is stable for a session, version and position, so every
// gateway derives the same id for the same event.
func derivedEventID(sessionID string, version uint64, t EventType, index int) string {
	key := fmt.Sprintf("%s/%d/%s/%d", sessionID, version, t, index)
	return uuid.NewSHA1(derivedEventNamespace, []byte(key)).String()
}

// deriveEvents lists the events implied by moving from prev to next, the
// full snapshot first. prev is nil for the first document of a session.
func deriveEvents(prev *models.SharedDocument, next models.SharedDocument, at time.Time) ([]*DraftEvent, error) {
	type item struct {
		t EventType
		p any
	}
	items := []item{{EventTypeSnapshot, events.SnapshotPayload{Snapshot: next}}}

	if prev != nil {
		one, two := next.Record(models.SeatOne), next.Record(models.SeatTwo)
		if prev.State.Phase == models.PhaseNameEntry && next.State.Phase == models.PhaseDrafting {
			items = append(items, item{EventTypeDraftStarted, events.DraftStartedPayload{
				SessionID: next.SessionID,
				SeatOne:   one.Name,
				SeatTwo:   two.Name,
				StartedAt: at,
			}})
		}

		for _, seat := range models.Seats {
			before, after := prev.Record(seat).RosterSlots, next.Record(seat).RosterSlots
			for _, slot := range models.AllSlots {
				p := after[slot]
				if p == nil {
					continue
				}
				if old := before[slot]; old != nil && old.ExternalID == p.ExternalID {
					continue
				}
				items = append(items, item{EventTypePickMade, events.PickMadePayload{
					Seat:       seat,
					SeatName:   next.Record(seat).Name,
					Slot:       slot,
					PlayerID:   p.ExternalID,
					PlayerName: p.DisplayName,
					Position:   p.OriginalPosition,
					Version:    next.Version,
					MadeAt:     at,
				}})
			}
		}

		if next.State.Phase == models.PhaseDrafting && prev.State.CurrentTurnSeat != next.State.CurrentTurnSeat {
			items = append(items, item{EventTypeTurnChanged, events.TurnChangedPayload{
				Seat:     next.State.CurrentTurnSeat,
				SeatName: next.Record(next.State.CurrentTurnSeat).Name,
				Version:  next.Version,
			}})
		}

		if prev.State.Phase != models.PhaseComplete && next.State.Phase == models.PhaseComplete {
			items = append(items, item{EventTypeDraftCompleted, events.DraftCompletedPayload{
				SessionID:   next.SessionID,
				CompletedAt: at,
			}})
		}
	}

	out := make([]*DraftEvent, 0, len(items))
	for i, it := range items {
		ev, err := NewDraftEvent(next.SessionID, it.t, next.Version, at, it.p)
		if err != nil {
			return nil, err
		}
		ev.ID = derivedEventID(next.SessionID, next.Version, it.t, i)
		out = append(out, ev)
	}
	return out, nil
}
