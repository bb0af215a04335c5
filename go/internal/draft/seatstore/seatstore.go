package seatstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// SeatStore persists hot-seat records on this machine. Records are
// namespaced so several local games can share one database.
type SeatStore interface {
	// LoadSeatRecord returns nil when nothing is stored for the seat.
	LoadSeatRecord(ctx context.Context, namespace string, seat models.Seat) (*models.PlayerRecord, error)
	SaveSeatRecord(ctx context.Context, namespace string, seat models.Seat, rec models.PlayerRecord) error
	ClearSeatRecord(ctx context.Context, namespace string, seat models.Seat) error
	Close() error
}

// Memory is a SeatStore that lives as long as the process.
type Memory struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

var _ SeatStore = (*Memory)(nil)

func (m *Memory) LoadSeatRecord(ctx context.Context, namespace string, seat models.Seat) (*models.PlayerRecord, error) {
	m.mu.Lock()
	data, ok := m.records[key(namespace, seat)]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeRecord(data)
}

func (m *Memory) SaveSeatRecord(ctx context.Context, namespace string, seat models.Seat, rec models.PlayerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal seat record: %w", err)
	}
	m.mu.Lock()
	m.records[key(namespace, seat)] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) ClearSeatRecord(ctx context.Context, namespace string, seat models.Seat) error {
	m.mu.Lock()
	delete(m.records, key(namespace, seat))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func key(namespace string, seat models.Seat) string {
	return fmt.Sprintf("%s/%d", namespace, seat)
}

func decodeRecord(data []byte) (*models.PlayerRecord, error) {
	rec := models.NewPlayerRecord()
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal seat record: %w", err)
	}
	if rec.RosterSlots == nil {
		rec.RosterSlots = models.NewRosterSlots()
	}
	return &rec, nil
}
