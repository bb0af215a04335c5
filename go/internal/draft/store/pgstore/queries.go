package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS draft_sessions (
    id         TEXT PRIMARY KEY,
    version    BIGINT NOT NULL,
    document   JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL
)`

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries holds the statements of the session table.
type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func newTxQueries(tx *sql.Tx) *Queries {
	return newQueries(tx)
}

type sessionRow struct {
	ID        string
	Version   int64
	Document  json.RawMessage
	UpdatedAt time.Time
}

const insertSession = `
INSERT INTO draft_sessions (id, version, document, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`

func (q *Queries) InsertSession(ctx context.Context, row sessionRow) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertSession, row.ID, row.Version, []byte(row.Document), row.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const getSession = `
SELECT id, version, document, updated_at FROM draft_sessions WHERE id = $1`

func (q *Queries) GetSession(ctx context.Context, id string) (sessionRow, error) {
	return scanSession(q.db.QueryRowContext(ctx, getSession, id))
}

const getSessionForUpdate = getSession + ` FOR UPDATE`

func (q *Queries) GetSessionForUpdate(ctx context.Context, id string) (sessionRow, error) {
	return scanSession(q.db.QueryRowContext(ctx, getSessionForUpdate, id))
}

const updateSession = `
UPDATE draft_sessions SET version = $2, document = $3, updated_at = $4 WHERE id = $1`

func (q *Queries) UpdateSession(ctx context.Context, row sessionRow) error {
	_, err := q.db.ExecContext(ctx, updateSession, row.ID, row.Version, []byte(row.Document), row.UpdatedAt)
	return err
}

const notifySession = `SELECT pg_notify($1, $2)`

// NotifySession is delivered on commit, so listeners never see uncommitted versions.
func (q *Queries) NotifySession(ctx context.Context, channel, id string) error {
	_, err := q.db.ExecContext(ctx, notifySession, channel, id)
	return err
}

func scanSession(row *sql.Row) (sessionRow, error) {
	var r sessionRow
	var doc []byte
	if err := row.Scan(&r.ID, &r.Version, &doc, &r.UpdatedAt); err != nil {
		return sessionRow{}, err
	}
	r.Document = doc
	return r, nil
}
