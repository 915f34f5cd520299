package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ledger_entries (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	invoice_number TEXT,
	invoice_date   TEXT,
	client_name    TEXT,
	invoice_type   TEXT,
	total_amount   TEXT,
	tax_amount     TEXT,
	currency       TEXT,
	score          REAL,
	scored_at      TEXT,
	approved       INTEGER NOT NULL DEFAULT 0,
	attestation    TEXT NOT NULL DEFAULT '',
	corrects_id    TEXT,
	document_id    TEXT NOT NULL DEFAULT '',
	document_name  TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	sealed_at      TEXT,
	shared_at      TEXT
)`

const sqliteUpsert = `INSERT INTO ledger_entries (` + entryColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
	status = excluded.status,
	updated_at = excluded.updated_at,
	shared_at = excluded.shared_at
WHERE ledger_entries.status = 'SEALED' AND excluded.status = 'SHARED'`

const sqliteSelect = `SELECT ` + entryColumns + ` FROM ledger_entries`

const sqliteDeleteUnsealed = `DELETE FROM ledger_entries WHERE id = ? AND status NOT IN ('SEALED', 'SHARED')`

// SQLiteStore is a ledger.Store on an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ledger.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		s.logger.Error("failed to migrate ledger_entries", "error", err)
		return err
	}
	return nil
}

func sqliteTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) Save(ctx context.Context, e *ledger.Entry) error {
	if _, err := s.db.ExecContext(ctx, sqliteUpsert, entryArgs(e, sqliteTime)...); err != nil {
		s.logger.Error("failed to save ledger entry", "entry_id", e.ID, "status", e.Status, "error", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		s.logger.Error("failed to get ledger entry", "entry_id", id, "error", err)
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY created_at, id`)
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

func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, sqliteDeleteUnsealed, id.String())
	if err != nil {
		s.logger.Error("failed to delete ledger entry", "entry_id", id, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return common.WrapError(common.ErrNotDeletable, "delete "+id.String())
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
