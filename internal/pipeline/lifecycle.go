package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/fingerprint"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// Approve confirms the scored entry for sealing.
func (o *Orchestrator) Approve(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entry == nil {
		return common.WrapError(common.ErrNoEntry, "approve")
	}
	if err := o.entry.Approve(o.now()); err != nil {
		return err
	}
	o.rev++
	o.logger.Info("pipeline.approve.ok", o.entryLogAttrs()...)
	return nil
}

// Seal freezes the entry under attestation and records it in the Book. The entry only
// changes once the Book accepted it.
func (o *Orchestrator) Seal(ctx context.Context, attestation string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entry == nil {
		return common.WrapError(common.ErrNoEntry, "seal")
	}
	if o.entry.Status.Frozen() {
		return o.entry.Seal(attestation, o.now())
	}
	return o.commitLocked(ctx, "seal", func(e *ledger.Entry) error {
		return e.Seal(attestation, o.now())
	})
}

// Share hands the sealed entry to the auditor. Sharing twice is a no-op.
func (o *Orchestrator) Share(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entry == nil {
		return common.WrapError(common.ErrNoEntry, "share")
	}
	if o.entry.Status == constants.LedgerStatusShared {
		return nil
	}
	return o.commitLocked(ctx, "share", func(e *ledger.Entry) error {
		return e.Share(o.now())
	})
}

// commitLocked applies fn to a copy of the entry, writes the copy to the Book and only
// then swaps it in.
func (o *Orchestrator) commitLocked(ctx context.Context, op string, fn func(*ledger.Entry) error) error {
	next := o.entry.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := o.book.Commit(ctx, next); err != nil {
		o.logger.Error("pipeline."+op+".commit_failed", append(o.entryLogAttrs(), "error", err)...)
		if errors.Is(err, common.ErrInvariant) {
			return err
		}
		return common.AdapterError("ledger commit", err)
	}
	from := o.entry.Status
	o.entry = next
	o.rev++
	o.transitioned(from, o.entry)
	o.logger.Info("pipeline."+op+".ok", o.entryLogAttrs()...)
	return nil
}

// EditField overrides one record field. The fingerprint is recomputed and any score is
// cleared; nothing is re-fetched.
func (o *Orchestrator) EditField(_ context.Context, field, value string) (entity.AccountingRecord, error) {
	f, err := entity.ParseField(field)
	if err != nil {
		return entity.AccountingRecord{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entry == nil {
		return entity.AccountingRecord{}, common.WrapError(common.ErrNoEntry, "edit")
	}
	if o.entry.Status.Frozen() {
		return entity.AccountingRecord{}, common.WrapError(common.ErrFrozen, "edit")
	}
	if o.entry.Record == nil {
		return entity.AccountingRecord{}, common.WrapError(common.ErrNoRecord, "edit")
	}

	rec := *o.entry.Record
	if err := rec.Set(f, value); err != nil {
		return entity.AccountingRecord{}, err
	}
	var content []byte
	if o.doc != nil {
		content = o.doc.Content
	}
	from := o.entry.Status
	if err := o.entry.ApplyEdit(rec, fingerprint.Compute(content, rec.InvoiceNumber), o.now()); err != nil {
		return entity.AccountingRecord{}, err
	}
	o.rev++
	o.transitioned(from, o.entry)

	o.logger.Info("pipeline.edit.ok", append(o.entryLogAttrs(), "field", f)...)
	return rec, nil
}

// DeleteEntry drops the current line. Sealed and shared lines cannot be deleted.
func (o *Orchestrator) DeleteEntry(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entry == nil {
		return common.WrapError(common.ErrNoEntry, "delete")
	}
	if err := o.entry.CheckDeletable(); err != nil {
		return err
	}
	o.logger.Info("pipeline.delete.ok", o.entryLogAttrs()...)
	o.entry = nil
	o.rev++
	return nil
}

// Rename changes the document's display name. The bytes and ID stay the same.
func (o *Orchestrator) Rename(_ context.Context, name string) error {
	name = strings.TrimSpace(name)
	v := common.NewValidator().Field("name", name, common.Required, common.MaxLength(255))
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.doc == nil {
		return common.WrapError(common.ErrNoDocument, "rename")
	}
	o.doc.Name = name
	o.logger.Info("pipeline.rename.ok", "document_id", o.doc.ID, "name", name, "generation", o.gen)
	return nil
}

// Correct replaces a sealed current entry with a new Parsed entry that references it.
// The sealed entry stays in the Book untouched.
func (o *Orchestrator) Correct(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entry == nil {
		return common.WrapError(common.ErrNoEntry, "correct")
	}
	next, err := o.entry.Correct(o.now())
	if err != nil {
		return err
	}
	from := o.entry.Status
	o.entry = next
	o.rev++
	o.logger.Info("pipeline.correct.ok", append(o.entryLogAttrs(), "corrects_id", next.CorrectsID, "from", from)...)
	return nil
}

// Close abandons the open document: a pending call is cancelled and all state cleared.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.abortLocked()
	o.doc = nil
	o.text = entity.ExtractedText{}
	o.entry = nil
	o.rev++
	o.logger.Info("pipeline.close", "generation", o.gen)
}
