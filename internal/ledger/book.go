package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
)

// Book is the ledger of record: only sealed or shared entries go in, and nothing in it
// can be deleted through the core.
type Book struct {
	mu     sync.Mutex // serializes Commit's read-check-write
	store  Store
	logger *slog.Logger
}

func NewBook(store Store, logger *slog.Logger) *Book {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{store: store, logger: logger}
}

// Commit writes a sealed or shared entry. A recorded entry may only move forward
// (Sealed to Shared) and its record, fingerprint and attestation never change; a stale or
// altered copy is an invariant violation. Store failures are returned as is.
func (b *Book) Commit(ctx context.Context, e *Entry) error {
	if e == nil {
		return common.ErrNoEntry
	}
	if !e.Status.Frozen() {
		return common.InvariantErrorf("commit: entry %s is %s, only sealed entries are recorded", e.ID, e.Status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, err := b.store.Get(ctx, e.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		b.logger.Error("ledger.commit.failed", "entry_id", e.ID, "status", e.Status, "error", err)
		return err
	default:
		if err := checkAdvance(prev, e); err != nil {
			b.logger.Warn("ledger.commit.refused", "entry_id", e.ID, "recorded", prev.Status, "status", e.Status, "error", err)
			return err
		}
	}

	if err := b.store.Save(ctx, e.Clone()); err != nil {
		b.logger.Error("ledger.commit.failed", "entry_id", e.ID, "status", e.Status, "error", err)
		return err
	}
	b.logger.Info("ledger.commit.ok", "entry_id", e.ID, "status", e.Status, "fingerprint", e.Fingerprint)
	return nil
}

// checkAdvance accepts next as a re-commit of the recorded prev.
func checkAdvance(prev, next *Entry) error {
	if next.Status.Rank() < prev.Status.Rank() {
		return common.InvariantErrorf("commit: entry %s is already %s and cannot go back to %s", next.ID, prev.Status, next.Status)
	}
	if next.Fingerprint != prev.Fingerprint || next.Attestation != prev.Attestation || !sameRecord(prev.Record, next.Record) {
		return common.WrapError(common.ErrFrozen, "commit: entry "+next.ID.String()+" was recorded with different content")
	}
	return nil
}

func sameRecord(a, b *entity.AccountingRecord) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Remove deletes an entry only if it is not sealed or shared.
func (b *Book) Remove(ctx context.Context, id uuid.UUID) error {
	e, err := b.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.CheckDeletable(); err != nil {
		b.logger.Warn("ledger.remove.refused", "entry_id", id, "status", e.Status)
		return err
	}
	return b.store.Delete(ctx, id)
}

func (b *Book) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return b.store.Get(ctx, id)
}

func (b *Book) List(ctx context.Context) ([]*Entry, error) {
	return b.store.List(ctx)
}

// Ping checks the backing store when it supports it.
func (b *Book) Ping(ctx context.Context) error {
	if p, ok := b.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
