package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/fingerprint"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord() entity.AccountingRecord {
	return entity.AccountingRecord{
		InvoiceNumber: "123",
		Date:          "2024-03-01",
		ClientName:    "ACME",
		Type:          "Services",
		TotalAmount:   decimal.NewFromInt(500),
		TaxAmount:     decimal.Zero,
		Currency:      "USD",
	}
}

func scored(t *testing.T) *Entry {
	t.Helper()
	e := NewEntry("doc", "invoice.pdf", t0)
	require.NoError(t, e.ApplyParsed(sampleRecord(), "fp1", t0))
	require.NoError(t, e.ApplyScore(entity.CredibilityScore{Value: 72, ScoredAt: t0}, t0))
	return e
}

func sealed(t *testing.T) *Entry {
	t.Helper()
	e := scored(t)
	require.NoError(t, e.Approve(t0))
	require.NoError(t, e.Seal("att-1", t0))
	return e
}

func TestNewEntryIsDraft(t *testing.T) {
	e := NewEntry("doc", "a.pdf", t0)
	assert.Equal(t, constants.LedgerStatusDraft, e.Status)
	assert.Equal(t, fingerprint.Pending, e.Fingerprint)
	assert.Nil(t, e.Record)
	assert.Nil(t, e.Score)
	assert.NotEqual(t, uuid.Nil, e.ID)
}

func TestHappyPath(t *testing.T) {
	e := sealed(t)
	assert.Equal(t, constants.LedgerStatusSealed, e.Status)
	assert.Equal(t, "att-1", e.Attestation)
	require.NotNil(t, e.SealedAt)

	require.NoError(t, e.Share(t0.Add(time.Minute)))
	assert.Equal(t, constants.LedgerStatusShared, e.Status)
	require.NotNil(t, e.SharedAt)
}

func TestEditInvalidatesScore(t *testing.T) {
	for _, start := range []string{"parsed", "scored", "approved"} {
		t.Run(start, func(t *testing.T) {
			e := NewEntry("doc", "a.pdf", t0)
			require.NoError(t, e.ApplyParsed(sampleRecord(), "fp1", t0))
			if start != "parsed" {
				require.NoError(t, e.ApplyScore(entity.CredibilityScore{Value: 50}, t0))
			}
			if start == "approved" {
				require.NoError(t, e.Approve(t0))
			}
			rec := sampleRecord()
			rec.ClientName = "Globex"
			require.NoError(t, e.ApplyEdit(rec, "fp2", t0))
			assert.Equal(t, constants.LedgerStatusParsed, e.Status)
			assert.Nil(t, e.Score)
			assert.False(t, e.Approved)
			assert.Equal(t, "Globex", e.Record.ClientName)
			assert.Equal(t, "fp2", e.Fingerprint)
		})
	}
}

func TestEditDraftRejected(t *testing.T) {
	e := NewEntry("doc", "a.pdf", t0)
	err := e.ApplyEdit(sampleRecord(), "fp", t0)
	assert.ErrorIs(t, err, common.ErrInvariant)
	assert.Equal(t, constants.LedgerStatusDraft, e.Status)
	assert.Nil(t, e.Record)
}

func TestSealGuard(t *testing.T) {
	t.Run("no score", func(t *testing.T) {
		e := NewEntry("doc", "a.pdf", t0)
		require.NoError(t, e.ApplyParsed(sampleRecord(), "fp", t0))
		before := e.Clone()
		err := e.Seal("att", t0)
		assert.ErrorIs(t, err, common.ErrInvariant)
		assert.ErrorIs(t, err, common.ErrScoreMissing)
		assert.Equal(t, before, e)
	})
	t.Run("draft", func(t *testing.T) {
		e := NewEntry("doc", "a.pdf", t0)
		assert.ErrorIs(t, e.Seal("att", t0), common.ErrScoreMissing)
		assert.Equal(t, constants.LedgerStatusDraft, e.Status)
	})
	t.Run("not approved", func(t *testing.T) {
		e := scored(t)
		before := e.Clone()
		assert.ErrorIs(t, e.Seal("att", t0), common.ErrNotApproved)
		assert.Equal(t, before, e)
	})
	t.Run("empty token", func(t *testing.T) {
		e := scored(t)
		require.NoError(t, e.Approve(t0))
		before := e.Clone()
		assert.ErrorIs(t, e.Seal("  ", t0), common.ErrInput)
		assert.Equal(t, before, e)
	})
}

func TestSealIdempotence(t *testing.T) {
	e := sealed(t)
	before := e.Clone()
	require.NoError(t, e.Seal("att-1", t0.Add(time.Hour)))
	assert.Equal(t, before, e)

	err := e.Seal("att-2", t0)
	assert.ErrorIs(t, err, common.ErrInvariant)
	assert.Equal(t, before, e)
}

func TestShareIdempotence(t *testing.T) {
	e := sealed(t)
	require.NoError(t, e.Share(t0))
	first := e.Clone()
	require.NoError(t, e.Share(t0.Add(time.Hour)))
	assert.Equal(t, constants.LedgerStatusShared, e.Status)
	assert.Equal(t, first, e)
}

func TestShareRequiresSeal(t *testing.T) {
	e := scored(t)
	before := e.Clone()
	assert.ErrorIs(t, e.Share(t0), common.ErrInvariant)
	assert.Equal(t, before, e)
}

func TestFrozenEntriesRejectChanges(t *testing.T) {
	for _, shared := range []bool{false, true} {
		e := sealed(t)
		if shared {
			require.NoError(t, e.Share(t0))
		}
		before := e.Clone()

		assert.ErrorIs(t, e.ApplyParsed(sampleRecord(), "x", t0), common.ErrFrozen)
		assert.ErrorIs(t, e.ApplyEdit(sampleRecord(), "x", t0), common.ErrFrozen)
		assert.ErrorIs(t, e.ApplyScore(entity.CredibilityScore{Value: 1}, t0), common.ErrFrozen)
		assert.ErrorIs(t, e.InvalidateScore(t0), common.ErrFrozen)
		assert.ErrorIs(t, e.Approve(t0), common.ErrFrozen)
		assert.ErrorIs(t, e.CheckDeletable(), common.ErrNotDeletable)
		assert.ErrorIs(t, e.CheckDeletable(), common.ErrInvariant)
		assert.Equal(t, before, e)
	}
}

func TestApproveRequiresScore(t *testing.T) {
	e := NewEntry("doc", "a.pdf", t0)
	require.NoError(t, e.ApplyParsed(sampleRecord(), "fp", t0))
	assert.ErrorIs(t, e.Approve(t0), common.ErrScoreMissing)
	assert.False(t, e.Approved)
}

func TestApplyScoreRejectsOutOfRange(t *testing.T) {
	e := NewEntry("doc", "a.pdf", t0)
	require.NoError(t, e.ApplyParsed(sampleRecord(), "fp", t0))
	assert.ErrorIs(t, e.ApplyScore(entity.CredibilityScore{Value: 140}, t0), common.ErrInvariant)
	assert.Equal(t, constants.LedgerStatusParsed, e.Status)
	assert.Nil(t, e.Score)
}

func TestInvalidateScore(t *testing.T) {
	d := NewEntry("doc", "a.pdf", t0)
	require.NoError(t, d.InvalidateScore(t0))
	assert.Equal(t, constants.LedgerStatusDraft, d.Status)

	e := scored(t)
	require.NoError(t, e.InvalidateScore(t0))
	assert.Equal(t, constants.LedgerStatusParsed, e.Status)
	assert.Nil(t, e.Score)
	assert.NotNil(t, e.Record)
}

func TestCorrect(t *testing.T) {
	e := sealed(t)
	before := e.Clone()

	c, err := e.Correct(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, before, e, "sealed entry untouched")
	assert.NotEqual(t, e.ID, c.ID)
	assert.Equal(t, constants.LedgerStatusParsed, c.Status)
	require.NotNil(t, c.CorrectsID)
	assert.Equal(t, e.ID, *c.CorrectsID)
	assert.True(t, c.Record.Equal(*e.Record))
	assert.Nil(t, c.Score)

	c.Record.ClientName = "changed"
	assert.Equal(t, "ACME", e.Record.ClientName)

	_, err = scored(t).Correct(t0)
	assert.ErrorIs(t, err, common.ErrInvariant)
}

func TestCloneIsDeep(t *testing.T) {
	e := sealed(t)
	c := e.Clone()
	c.Record.InvoiceNumber = "999"
	c.Score.Value = 1
	*c.SealedAt = t0.Add(time.Hour)
	assert.Equal(t, "123", e.Record.InvoiceNumber)
	assert.Equal(t, 72.0, e.Score.Value)
	assert.Equal(t, t0, *e.SealedAt)
	assert.Nil(t, (*Entry)(nil).Clone())
}

// Random operation sequences: once parsed an entry never returns to Draft, once sealed it
// never drops below Sealed, and a frozen record never changes. Failed transitions leave the
// entry exactly as it was.
func TestLifecycleNeverRegresses(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ops := []func(e *Entry) error{
		func(e *Entry) error { return e.ApplyParsed(sampleRecord(), "fp-parse", t0) },
		func(e *Entry) error { return e.ApplyScore(entity.CredibilityScore{Value: float64(rng.Intn(101))}, t0) },
		func(e *Entry) error {
			r := sampleRecord()
			r.InvoiceNumber = "edited"
			return e.ApplyEdit(r, "fp-edit", t0)
		},
		func(e *Entry) error { return e.InvalidateScore(t0) },
		func(e *Entry) error { return e.Approve(t0) },
		func(e *Entry) error { return e.Seal("att", t0) },
		func(e *Entry) error { return e.Seal("other", t0) },
		func(e *Entry) error { return e.Share(t0) },
		func(e *Entry) error { return e.CheckDeletable() },
	}

	for run := 0; run < 500; run++ {
		e := NewEntry("doc", "a.pdf", t0)
		var frozen *entity.AccountingRecord
		for step := 0; step < 30; step++ {
			before := e.Clone()
			err := ops[rng.Intn(len(ops))](e)
			if err != nil {
				require.Equal(t, before, e, "failed transition mutated the entry")
				continue
			}
			if before.Status != constants.LedgerStatusDraft {
				require.NotEqual(t, constants.LedgerStatusDraft, e.Status)
			}
			if before.Status.Frozen() {
				require.GreaterOrEqual(t, e.Status.Rank(), before.Status.Rank())
				require.True(t, frozen.Equal(*e.Record))
			}
			if e.Status.Frozen() && frozen == nil {
				r := *e.Record
				frozen = &r
			}
		}
	}
}

type failingStore struct{ *MemoryStore }

func (failingStore) Save(context.Context, *Entry) error { return errors.New("disk full") }

func TestBookCommitOnlyFrozen(t *testing.T) {
	ctx := context.Background()
	b := NewBook(nil, nil)

	err := b.Commit(ctx, scored(t))
	assert.ErrorIs(t, err, common.ErrInvariant)
	assert.ErrorIs(t, b.Commit(ctx, nil), common.ErrNoEntry)

	e := sealed(t)
	require.NoError(t, b.Commit(ctx, e))
	require.NoError(t, e.Share(t0))
	require.NoError(t, b.Commit(ctx, e))

	list, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, constants.LedgerStatusShared, list[0].Status)

	got, err := b.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestBookCommitOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	b := NewBook(NewMemoryStore(), nil)
	e := sealed(t)
	require.NoError(t, b.Commit(ctx, e))
	require.NoError(t, b.Commit(ctx, e), "re-committing the same sealed entry is a no-op")

	shared := e.Clone()
	require.NoError(t, shared.Share(t0.Add(time.Hour)))
	require.NoError(t, b.Commit(ctx, shared))

	assert.ErrorIs(t, b.Commit(ctx, e), common.ErrInvariant, "stale sealed copy")

	altered := shared.Clone()
	altered.Record.ClientName = "someone else"
	assert.ErrorIs(t, b.Commit(ctx, altered), common.ErrFrozen)

	resealed := shared.Clone()
	resealed.Attestation = "att-2"
	assert.ErrorIs(t, b.Commit(ctx, resealed), common.ErrInvariant)

	got, err := b.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, shared, got)
}

func TestTransitionsStampGivenTime(t *testing.T) {
	e := NewEntry("doc", "a.pdf", t0)
	steps := []struct {
		name string
		run  func(now time.Time) error
	}{
		{"parse", func(now time.Time) error { return e.ApplyParsed(sampleRecord(), "fp", now) }},
		{"score", func(now time.Time) error { return e.ApplyScore(entity.CredibilityScore{Value: 60}, now) }},
		{"approve", func(now time.Time) error { return e.Approve(now) }},
		{"edit", func(now time.Time) error { return e.ApplyEdit(sampleRecord(), "fp2", now) }},
		{"rescore", func(now time.Time) error { return e.ApplyScore(entity.CredibilityScore{Value: 61}, now) }},
		{"invalidate", func(now time.Time) error { return e.InvalidateScore(now) }},
	}
	for i, step := range steps {
		now := t0.Add(time.Duration(i+1) * time.Hour)
		require.NoError(t, step.run(now), step.name)
		assert.Equal(t, now, e.UpdatedAt, step.name)
	}
}

func TestBookRemoveRefusesSealed(t *testing.T) {
	ctx := context.Background()
	b := NewBook(NewMemoryStore(), nil)
	e := sealed(t)
	require.NoError(t, b.Commit(ctx, e))

	err := b.Remove(ctx, e.ID)
	assert.ErrorIs(t, err, common.ErrNotDeletable)
	_, err = b.Get(ctx, e.ID)
	assert.NoError(t, err, "entry remains in the ledger")

	assert.ErrorIs(t, b.Remove(ctx, uuid.New()), common.ErrNotFound)
}

func TestBookSurfacesStoreFailure(t *testing.T) {
	b := NewBook(failingStore{NewMemoryStore()}, nil)
	err := b.Commit(context.Background(), sealed(t))
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, b.Ping(context.Background()))
}

func TestMemoryStoreKeepsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e := sealed(t)
	require.NoError(t, s.Save(ctx, e))
	e.Record.ClientName = "mutated"

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Record.ClientName)

	require.NoError(t, s.Delete(ctx, e.ID))
	_, err = s.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, s.Delete(ctx, e.ID), common.ErrNotFound)
}
