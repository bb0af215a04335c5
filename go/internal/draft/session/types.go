package session

import (
	"github.com/mcdev12/draftslots/go/internal/draft"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// ServiceName is the fully qualified name of the draft RPC service.
const ServiceName = "draftslots.v1.DraftService"

// Procedure paths, one per RPC.
const (
	JoinSessionProcedure   = "/" + ServiceName + "/JoinSession"
	ConfirmNameProcedure   = "/" + ServiceName + "/ConfirmName"
	SelectAvatarProcedure  = "/" + ServiceName + "/SelectAvatar"
	RollTeamProcedure      = "/" + ServiceName + "/RollTeam"
	SetTeamRosterProcedure = "/" + ServiceName + "/SetTeamRoster"
	DraftPlayerProcedure   = "/" + ServiceName + "/DraftPlayer"
	AssignToSlotProcedure  = "/" + ServiceName + "/AssignToSlot"
	AutoDraftProcedure     = "/" + ServiceName + "/AutoDraft"
	ResetSeatProcedure     = "/" + ServiceName + "/ResetSeat"
	GetSnapshotProcedure   = "/" + ServiceName + "/GetSnapshot"
	LeaveSessionProcedure  = "/" + ServiceName + "/LeaveSession"
)

type JoinSessionRequest struct {
	SessionID string          `json:"session_id"`
	ClientID  string          `json:"client_id"`
	Mode      models.SyncMode `json:"mode"`
}

// JoinSessionResponse carries the document as of the join so the client
// can render before the first change arrives.
type JoinSessionResponse struct {
	SessionID string                 `json:"session_id"`
	ClientID  string                 `json:"client_id"`
	Mode      models.SyncMode        `json:"mode"`
	Seat      models.Seat            `json:"seat"`
	Snapshot  *models.SharedDocument `json:"snapshot"`
}

// SeatRef addresses one seat of a joined session.
type SeatRef struct {
	SessionID string      `json:"session_id"`
	ClientID  string      `json:"client_id"`
	Seat      models.Seat `json:"seat"`
}

type ConfirmNameRequest struct {
	SeatRef
	Name string `json:"name"`
}

type SelectAvatarRequest struct {
	SeatRef
	AvatarRef string `json:"avatar_ref"`
}

type RollTeamRequest struct {
	SeatRef
}

type SetTeamRosterRequest struct {
	SeatRef
	TeamRoster models.TeamRoster `json:"team_roster"`
}

type DraftPlayerRequest struct {
	SeatRef
	Player models.ExternalPlayer `json:"player"`
}

type AssignToSlotRequest struct {
	SeatRef
	Player models.ExternalPlayer `json:"player"`
	Slot   models.Slot           `json:"slot"`
}

type AutoDraftRequest struct {
	SeatRef
}

type ResetSeatRequest struct {
	SeatRef
}

type GetSnapshotRequest struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
}

type LeaveSessionRequest struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
}

// ActionResponse is returned by every draft action. Applied is false when
// the request targeted a seat the client does not control. Snapshot is only
// set in local mode; shared clients render from the gateway feed.
type ActionResponse struct {
	Applied  bool                   `json:"applied"`
	Snapshot *models.SharedDocument `json:"snapshot,omitempty"`
}

type RollTeamResponse struct {
	ActionResponse
	TeamRoster *models.TeamRoster `json:"team_roster,omitempty"`
}

type DraftPlayerResponse struct {
	ActionResponse
	Outcome *draft.DraftOutcome `json:"outcome,omitempty"`
}

type AutoDraftResponse struct {
	ActionResponse
	Pick *draft.Pick `json:"pick,omitempty"`
}

type GetSnapshotResponse struct {
	Seat     models.Seat           `json:"seat"`
	Snapshot models.SharedDocument `json:"snapshot"`
}

type LeaveSessionResponse struct{}
