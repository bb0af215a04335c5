package draft

import "errors"

// Validation rejections. State is unchanged when one of these is returned.
var (
	ErrInvalidSeat            = errors.New("invalid seat")
	ErrEmptyName              = errors.New("please enter a name")
	ErrUnknownAvatar          = errors.New("unknown avatar")
	ErrNotDrafting            = errors.New("the draft is not in progress")
	ErrWrongTurn              = errors.New("it's not your turn")
	ErrRosterFull             = errors.New("your fantasy roster is full")
	ErrDuplicatePlayer        = errors.New("player has already been drafted")
	ErrAlreadyDraftedThisSpin = errors.New("you already drafted a player from this team, roll a new team or auto-draft")
	ErrUndraftablePosition    = errors.New("no open roster slot for this position")
	ErrIneligibleSlot         = errors.New("position cannot fill that slot")
	ErrSlotOccupied           = errors.New("slot is already occupied")
	ErrPlayerNotOnTeam        = errors.New("player is not on the team you rolled")
	ErrNameRequired           = errors.New("confirm your name before drafting")
)

// ErrNotLocalSeat rejects a request for a seat this client does not control.
// Transports treat it as a silent no-op.
var ErrNotLocalSeat = errors.New("seat is controlled by another client")

// Transient outcomes from external fetches; retryable, never fatal.
var (
	ErrNoPlayerFound     = errors.New("no draftable player found, try again")
	ErrRosterUnavailable = errors.New("team roster unavailable")
)

var rejections = []error{
	ErrInvalidSeat,
	ErrEmptyName,
	ErrUnknownAvatar,
	ErrNotDrafting,
	ErrWrongTurn,
	ErrRosterFull,
	ErrDuplicatePlayer,
	ErrAlreadyDraftedThisSpin,
	ErrUndraftablePosition,
	ErrIneligibleSlot,
	ErrSlotOccupied,
	ErrPlayerNotOnTeam,
	ErrNameRequired,
}

// IsRejection reports whether err is a user-facing validation rejection.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// IsSilent reports whether err should be swallowed rather than shown.
func IsSilent(err error) bool {
	return errors.Is(err, ErrNotLocalSeat)
}

// IsTransient reports whether err came from an external fetch and may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNoPlayerFound) || errors.Is(err, ErrRosterUnavailable)
}
