package seatstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// SQLite keeps seat records in a single local database file.
type SQLite struct {
	db *sql.DB
}

var _ SeatStore = (*SQLite)(nil)

func NewSQLite(dbPath string) (*SQLite, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS seat_records (
    namespace  TEXT NOT NULL,
    seat       INTEGER NOT NULL,
    record     TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, seat)
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure seat_records schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) LoadSeatRecord(ctx context.Context, namespace string, seat models.Seat) (*models.PlayerRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM seat_records WHERE namespace = ? AND seat = ?`,
		namespace, int(seat),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load seat %d: %w", seat, err)
	}
	return decodeRecord([]byte(data))
}

func (s *SQLite) SaveSeatRecord(ctx context.Context, namespace string, seat models.Seat, rec models.PlayerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal seat record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO seat_records (namespace, seat, record, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(namespace, seat) DO UPDATE SET
    record = excluded.record,
    updated_at = excluded.updated_at`,
		namespace, int(seat), string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save seat %d: %w", seat, err)
	}
	return nil
}

func (s *SQLite) ClearSeatRecord(ctx context.Context, namespace string, seat models.Seat) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM seat_records WHERE namespace = ? AND seat = ?`,
		namespace, int(seat),
	); err != nil {
		return fmt.Errorf("failed to clear seat %d: %w", seat, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
