package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft"
	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// Service exposes the draft App over Connect unary RPCs with JSON bodies.
type Service struct {
	manager *Manager
}

// NewService creates a new draft RPC service
func NewService(manager *Manager) *Service {
	return &Service{manager: manager}
}

// Handler returns the path prefix and handler serving every procedure.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(JoinSessionProcedure, connect.NewUnaryHandler(JoinSessionProcedure, s.JoinSession, opts...))
	mux.Handle(ConfirmNameProcedure, connect.NewUnaryHandler(ConfirmNameProcedure, s.ConfirmName, opts...))
	mux.Handle(SelectAvatarProcedure, connect.NewUnaryHandler(SelectAvatarProcedure, s.SelectAvatar, opts...))
	mux.Handle(RollTeamProcedure, connect.NewUnaryHandler(RollTeamProcedure, s.RollTeam, opts...))
	mux.Handle(SetTeamRosterProcedure, connect.NewUnaryHandler(SetTeamRosterProcedure, s.SetTeamRoster, opts...))
	mux.Handle(DraftPlayerProcedure, connect.NewUnaryHandler(DraftPlayerProcedure, s.DraftPlayer, opts...))
	mux.Handle(AssignToSlotProcedure, connect.NewUnaryHandler(AssignToSlotProcedure, s.AssignToSlot, opts...))
	mux.Handle(AutoDraftProcedure, connect.NewUnaryHandler(AutoDraftProcedure, s.AutoDraft, opts...))
	mux.Handle(ResetSeatProcedure, connect.NewUnaryHandler(ResetSeatProcedure, s.ResetSeat, opts...))
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, s.GetSnapshot, opts...))
	mux.Handle(LeaveSessionProcedure, connect.NewUnaryHandler(LeaveSessionProcedure, s.LeaveSession, opts...))
	return "/" + ServiceName + "/", mux
}

// JoinSession opens or joins a session and claims a seat
func (s *Service) JoinSession(ctx context.Context, req *connect.Request[JoinSessionRequest]) (*connect.Response[JoinSessionResponse], error) {
	joined, err := s.manager.Join(ctx, JoinRequest{
		SessionID: req.Msg.SessionID,
		ClientID:  req.Msg.ClientID,
		Mode:      req.Msg.Mode,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&JoinSessionResponse{
		SessionID: joined.SessionID,
		ClientID:  joined.ClientID,
		Mode:      joined.Mode,
		Seat:      joined.Seat,
		Snapshot:  &joined.Snapshot,
	}), nil
}

// ConfirmName sets a seat's name
func (s *Service) ConfirmName(ctx context.Context, req *connect.Request[ConfirmNameRequest]) (*connect.Response[ActionResponse], error) {
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		return app.ConfirmName(ctx, req.Msg.Seat, req.Msg.Name)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// SelectAvatar sets a seat's avatar
func (s *Service) SelectAvatar(ctx context.Context, req *connect.Request[SelectAvatarRequest]) (*connect.Response[ActionResponse], error) {
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		return app.SelectAvatar(ctx, req.Msg.Seat, req.Msg.AvatarRef)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// RollTeam rolls a random team and attaches its roster to the seat
func (s *Service) RollTeam(ctx context.Context, req *connect.Request[RollTeamRequest]) (*connect.Response[RollTeamResponse], error) {
	var tr models.TeamRoster
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		var err error
		tr, err = app.RollTeam(ctx, req.Msg.Seat)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := &RollTeamResponse{ActionResponse: *resp}
	if resp.Applied {
		out.TeamRoster = &tr
	}
	return connect.NewResponse(out), nil
}

// SetTeamRoster attaches a roster the client fetched itself
func (s *Service) SetTeamRoster(ctx context.Context, req *connect.Request[SetTeamRosterRequest]) (*connect.Response[ActionResponse], error) {
	if strings.TrimSpace(req.Msg.TeamRoster.TeamID) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("team_roster.team_id is required"))
	}
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		return app.SetTeamRoster(ctx, req.Msg.Seat, req.Msg.TeamRoster)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// DraftPlayer drafts a player, or returns the slots the client must pick from
func (s *Service) DraftPlayer(ctx context.Context, req *connect.Request[DraftPlayerRequest]) (*connect.Response[DraftPlayerResponse], error) {
	if err := validatePlayer(req.Msg.Player); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	var outcome draft.DraftOutcome
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		var err error
		outcome, err = app.DraftPlayer(ctx, req.Msg.Seat, req.Msg.Player)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := &DraftPlayerResponse{ActionResponse: *resp}
	if resp.Applied {
		out.Outcome = &outcome
	}
	return connect.NewResponse(out), nil
}

// AssignToSlot drafts a player into a specific slot
func (s *Service) AssignToSlot(ctx context.Context, req *connect.Request[AssignToSlotRequest]) (*connect.Response[ActionResponse], error) {
	if err := validatePlayer(req.Msg.Player); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if !req.Msg.Slot.Valid() {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown slot %q", req.Msg.Slot))
	}
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		return app.AssignToSlot(ctx, req.Msg.Seat, req.Msg.Player, req.Msg.Slot)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// AutoDraft drafts one random legal player for the seat
func (s *Service) AutoDraft(ctx context.Context, req *connect.Request[AutoDraftRequest]) (*connect.Response[AutoDraftResponse], error) {
	var pick draft.Pick
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		var err error
		pick, err = app.AutoDraftOne(ctx, req.Msg.Seat)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := &AutoDraftResponse{ActionResponse: *resp}
	if resp.Applied {
		out.Pick = &pick
	}
	return connect.NewResponse(out), nil
}

// ResetSeat clears a seat's record
func (s *Service) ResetSeat(ctx context.Context, req *connect.Request[ResetSeatRequest]) (*connect.Response[ActionResponse], error) {
	resp, err := s.act(ctx, req.Msg.SeatRef, func(app *draft.App) error {
		return app.ResetSeat(ctx, req.Msg.Seat)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// GetSnapshot returns the latest document of a joined session
func (s *Service) GetSnapshot(ctx context.Context, req *connect.Request[GetSnapshotRequest]) (*connect.Response[GetSnapshotResponse], error) {
	app, err := s.manager.App(req.Msg.SessionID, req.Msg.ClientID)
	if err != nil {
		return nil, toConnectError(err)
	}
	doc, err := app.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	seat := app.LocalSeat()
	if app.Mode() == models.SyncModeShared {
		seat = doc.SeatOf(req.Msg.ClientID)
	}
	return connect.NewResponse(&GetSnapshotResponse{Seat: seat, Snapshot: doc}), nil
}

// LeaveSession closes the client's App and frees its seat
func (s *Service) LeaveSession(ctx context.Context, req *connect.Request[LeaveSessionRequest]) (*connect.Response[LeaveSessionResponse], error) {
	if err := s.manager.Leave(ctx, req.Msg.SessionID, req.Msg.ClientID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LeaveSessionResponse{}), nil
}

// act runs one App operation. Requests for a seat the client does not
// control come back unapplied rather than as errors.
func (s *Service) act(ctx context.Context, ref SeatRef, op func(app *draft.App) error) (*ActionResponse, error) {
	app, err := s.manager.App(ref.SessionID, ref.ClientID)
	if err != nil {
		return nil, toConnectError(err)
	}

	if err := op(app); err != nil {
		if draft.IsSilent(err) {
			log.Debug().
				Str("session_id", ref.SessionID).
				Str("client_id", ref.ClientID).
				Int("seat", int(ref.Seat)).
				Msg("ignored request for a seat this client does not control")
			return &ActionResponse{Applied: false}, nil
		}
		return nil, toConnectError(err)
	}

	resp := &ActionResponse{Applied: true}
	if app.Mode() == models.SyncModeLocal {
		doc, err := app.Snapshot(ctx)
		if err != nil {
			return nil, toConnectError(err)
		}
		resp.Snapshot = &doc
	}
	return resp, nil
}

func validatePlayer(p models.ExternalPlayer) error {
	if strings.TrimSpace(p.ExternalID) == "" {
		return errors.New("player.external_id is required")
	}
	if strings.TrimSpace(p.Position) == "" {
		return errors.New("player.position is required")
	}
	return nil
}

// toConnectError maps domain errors onto Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, draft.ErrInvalidSeat),
		errors.Is(err, draft.ErrEmptyName),
		errors.Is(err, draft.ErrUnknownAvatar),
		errors.Is(err, store.ErrInvalidSessionID),
		errors.Is(err, ErrInvalidMode):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case draft.IsRejection(err):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case draft.IsTransient(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, ErrNotJoined), errors.Is(err, store.ErrSessionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrModeUnavailable):
		return connect.NewError(connect.CodeUnimplemented, err)
	case errors.Is(err, models.ErrVersionConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		log.Error().Err(err).Msg("draft request failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}
