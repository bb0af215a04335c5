package events

import (
	"time"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// Event payload types shared by the gateway and its clients.

// SnapshotPayload carries the full session document after a change.
type SnapshotPayload struct {
	Snapshot models.SharedDocument `json:"snapshot"`
}

// DraftStartedPayload is sent once both seats have confirmed a name.
type DraftStartedPayload struct {
	SessionID string    `json:"session_id"`
	SeatOne   string    `json:"seat_one"`
	SeatTwo   string    `json:"seat_two"`
	StartedAt time.Time `json:"started_at"`
}

// TurnChangedPayload is sent when the seat on the clock changes while drafting.
type TurnChangedPayload struct {
	Seat     models.Seat `json:"seat"`
	SeatName string      `json:"seat_name"`
	Version  uint64      `json:"version"`
}

// PickMadePayload is sent for every slot that became filled.
type PickMadePayload struct {
	Seat       models.Seat `json:"seat"`
	SeatName   string      `json:"seat_name"`
	Slot       models.Slot `json:"slot"`
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name"`
	Position   string      `json:"position"`
	Version    uint64      `json:"version"`
	MadeAt     time.Time   `json:"made_at"`
}

// DraftCompletedPayload is sent when both rosters are full.
type DraftCompletedPayload struct {
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// AnnouncementPayload is transient progress text one client shares with
// the others in its session. It is never stored.
type AnnouncementPayload struct {
	Seat   models.Seat `json:"seat"`
	Text   string      `json:"text"`
	SentAt time.Time   `json:"sent_at"`
}
