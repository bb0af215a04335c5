package seatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// Postgres keeps seat records in a shared database, for kiosks that run
// hot-seat games on several machines against one server.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ SeatStore = (*Postgres)(nil)

// NewPostgres connects with dsn and ensures the table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS seat_records (
    namespace  TEXT NOT NULL,
    seat       SMALLINT NOT NULL,
    record     JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, seat)
)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure seat_records schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) LoadSeatRecord(ctx context.Context, namespace string, seat models.Seat) (*models.PlayerRecord, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT record FROM seat_records WHERE namespace = $1 AND seat = $2`,
		namespace, int16(seat),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load seat %d: %w", seat, err)
	}
	return decodeRecord(data)
}

func (p *Postgres) SaveSeatRecord(ctx context.Context, namespace string, seat models.Seat, rec models.PlayerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal seat record: %w", err)
	}
	cmdTag, err := p.pool.Exec(ctx, `
INSERT INTO seat_records (namespace, seat, record, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, seat) DO UPDATE SET
    record = EXCLUDED.record,
    updated_at = EXCLUDED.updated_at`,
		namespace, int16(seat), data,
	)
	if err != nil {
		return fmt.Errorf("failed to save seat %d: %w", seat, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("save seat %d affected %d rows", seat, cmdTag.RowsAffected())
	}
	return nil
}

func (p *Postgres) ClearSeatRecord(ctx context.Context, namespace string, seat models.Seat) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM seat_records WHERE namespace = $1 AND seat = $2`,
		namespace, int16(seat),
	); err != nil {
		return fmt.Errorf("failed to clear seat %d: %w", seat, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
