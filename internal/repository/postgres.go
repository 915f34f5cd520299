package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// PgxPool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it too.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const pgSchema = `CREATE TABLE IF NOT EXISTS ledger_entries (
	id             UUID PRIMARY KEY,
	status         TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	invoice_number TEXT,
	invoice_date   TEXT,
	client_name    TEXT,
	invoice_type   TEXT,
	total_amount   NUMERIC(18,4),
	tax_amount     NUMERIC(18,4),
	currency       CHAR(3),
	score          DOUBLE PRECISION,
	scored_at      TIMESTAMPTZ,
	approved       BOOLEAN NOT NULL DEFAULT FALSE,
	attestation    TEXT NOT NULL DEFAULT '',
	corrects_id    UUID,
	document_id    TEXT NOT NULL DEFAULT '',
	document_name  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	sealed_at      TIMESTAMPTZ,
	shared_at      TIMESTAMPTZ
)`

// Re-saving an entry only moves it from SEALED to SHARED; the recorded fields are written once.
const pgUpsert = `INSERT INTO ledger_entries (` + entryColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at,
	shared_at = EXCLUDED.shared_at
WHERE ledger_entries.status = 'SEALED' AND EXCLUDED.status = 'SHARED'`

const pgSelect = `SELECT id::text, status, fingerprint,
	invoice_number, invoice_date, client_name, invoice_type,
	total_amount::text, tax_amount::text, currency,
	score, scored_at, approved, attestation, corrects_id::text,
	document_id, document_name,
	created_at, updated_at, sealed_at, shared_at
FROM ledger_entries`

const pgDeleteUnsealed = `DELETE FROM ledger_entries WHERE id = $1 AND status NOT IN ('SEALED', 'SHARED')`

// PostgresStore is a ledger.Store on Postgres.
type PostgresStore struct {
	pool   PgxPool
	logger *slog.Logger
}

var _ ledger.Store = (*PostgresStore)(nil)

func NewPostgresStore(pool PgxPool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Migrate creates the ledger table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		s.logger.Error("failed to migrate ledger_entries", "error", err)
		return err
	}
	return nil
}

func pgTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func (s *PostgresStore) Save(ctx context.Context, e *ledger.Entry) error {
	if _, err := s.pool.Exec(ctx, pgUpsert, entryArgs(e, pgTime)...); err != nil {
		s.logger.Error("failed to save ledger entry", "entry_id", e.ID, "status", e.Status, "error", err)
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, pgSelect+` WHERE id = $1`, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		s.logger.Error("failed to get ledger entry", "entry_id", id, "error", err)
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, pgSelect+` ORDER BY created_at, id`)
	if err != nil {
		s.logger.Error("failed to list ledger entries", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes an unsealed entry. Sealed and shared rows are refused by the statement itself.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, pgDeleteUnsealed, id.String())
	if err != nil {
		s.logger.Error("failed to delete ledger entry", "entry_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return common.WrapError(common.ErrNotDeletable, "delete "+id.String())
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
