package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mcdev12/draftslots/go/internal/models"
)

var (
	// ErrSessionNotFound is returned when reading a session that was never created.
	ErrSessionNotFound = errors.New("session not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store closed")
	// ErrInvalidSessionID is returned for ids that are not usable as keys.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// SharedStore is a networked document store holding one SharedDocument per
// session. Writes are applied atomically and bump the version; every
// subscriber of the session is notified asynchronously with the full new
// document, including the writer itself.
type SharedStore interface {
	// CreateOrJoinSession makes sure the session exists and returns its id.
	// An empty id creates a session under a fresh room code.
	CreateOrJoinSession(ctx context.Context, sessionID string) (string, error)
	ReadSnapshot(ctx context.Context, sessionID string) (models.SharedDocument, error)
	// WriteSnapshot applies patch atomically. A non-zero patch.IfVersion that
	// does not match fails with models.ErrVersionConflict.
	WriteSnapshot(ctx context.Context, sessionID string, patch models.Patch) (models.SharedDocument, error)
	// Subscribe calls fn with the current document and then with every later
	// version, in order, from a goroutine owned by the store.
	Subscribe(ctx context.Context, sessionID string, fn func(models.SharedDocument)) (unsubscribe func(), err error)
	SetPresence(ctx context.Context, sessionID string, seat models.Seat, connected bool) error
	Close() error
}

const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// NewRoomCode returns a short session id without look-alike characters.
func NewRoomCode() (string, error) {
	var sb strings.Builder
	size := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeSessionID upper-cases and validates a caller supplied id.
// Only letters, digits, '-' and '_' are accepted so ids are safe as KV keys
// and notification payloads.
func NormalizeSessionID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" || len(id) > 64 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
		}
	}
	return id, nil
}

// ClaimSeat gives clientID a seat in the session. A client that already
// holds a seat keeps it; otherwise the first free seat is taken, and once
// both are taken the client joins as an observer (SeatNone).
func ClaimSeat(ctx context.Context, s SharedStore, sessionID, clientID string) (models.Seat, models.SharedDocument, error) {
	if clientID == "" {
		return models.SeatNone, models.SharedDocument{}, errors.New("client id is required")
	}
	for attempt := 0; attempt < 5; attempt++ {
		doc, err := s.ReadSnapshot(ctx, sessionID)
		if err != nil {
			return models.SeatNone, models.SharedDocument{}, err
		}
		if seat := doc.SeatOf(clientID); seat != models.SeatNone {
			return seat, doc, nil
		}

		seat := models.SeatNone
		for _, candidate := range models.Seats {
			if doc.Occupants[candidate] == "" {
				seat = candidate
				break
			}
		}
		if seat == models.SeatNone {
			return models.SeatNone, doc, nil
		}

		patch := models.Patch{
			IfVersion: doc.Version,
			Occupants: map[models.Seat]string{seat: clientID},
		}
		doc, err = s.WriteSnapshot(ctx, sessionID, patch)
		if errors.Is(err, models.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return models.SeatNone, models.SharedDocument{}, err
		}
		return seat, doc, nil
	}
	return models.SeatNone, models.SharedDocument{}, fmt.Errorf("failed to claim seat: %w", models.ErrVersionConflict)
}

// ReleaseSeat frees the seat held by clientID, if any. The seat record
// stays, so a later claimant continues where the previous one left off.
func ReleaseSeat(ctx context.Context, s SharedStore, sessionID, clientID string) error {
	for attempt := 0; attempt < 5; attempt++ {
		doc, err := s.ReadSnapshot(ctx, sessionID)
		if err != nil {
			return err
		}
		seat := doc.SeatOf(clientID)
		if seat == models.SeatNone {
			return nil
		}
		_, err = s.WriteSnapshot(ctx, sessionID, models.Patch{
			IfVersion: doc.Version,
			Occupants: map[models.Seat]string{seat: ""},
			Presence:  map[models.Seat]bool{seat: false},
		})
		if !errors.Is(err, models.ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("failed to release seat: %w", models.ErrVersionConflict)
}
