package pipeline

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/fingerprint"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// Upload replaces the open document and resets the pipeline. It always succeeds: an
// empty or unreadable file is reported by Extract. filename decides the format and
// displayName, when set, is the name shown on the entry. A pending adapter call is
// cancelled and its response discarded. An unsealed entry is dropped; sealed entries are
// already in the Book.
func (o *Orchestrator) Upload(ctx context.Context, filename, displayName string, content []byte) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.abortLocked()
	now := o.now()
	doc := entity.NewDocument(filename, displayName, content, now)
	o.doc = &doc
	o.text = entity.ExtractedText{}
	o.entry = ledger.NewEntry(doc.ID, doc.Name, now)
	o.rev++

	o.logger.Info("pipeline.upload.ok",
		"document_id", doc.ID,
		"name", doc.Name,
		"filename", doc.Filename,
		"bytes", len(doc.Content),
		"entry_id", o.entry.ID,
		"generation", o.gen,
	)
	return o.snapshotLocked()
}

// Extract runs OCR on the open document. A new text that differs from the previous one
// invalidates any score.
func (o *Orchestrator) Extract(ctx context.Context) (entity.ExtractedText, error) {
	o.mu.Lock()
	if o.doc == nil {
		o.mu.Unlock()
		return entity.ExtractedText{}, common.WrapError(common.ErrNoDocument, OpExtract)
	}
	if o.entry != nil && o.entry.Status.Frozen() {
		o.mu.Unlock()
		return entity.ExtractedText{}, common.WrapError(common.ErrFrozen, OpExtract)
	}
	if len(o.doc.Content) == 0 {
		o.mu.Unlock()
		return entity.ExtractedText{}, common.WrapError(common.ErrEmptyDocument, OpExtract)
	}
	doc := *o.doc
	c, err := o.beginLocked(ctx, OpExtract, false)
	o.mu.Unlock()
	if err != nil {
		return entity.ExtractedText{}, err
	}

	text, err := o.extractor.ExtractText(c.ctx, doc)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.endLocked(c, err) {
		return entity.ExtractedText{}, common.WrapError(common.ErrSuperseded, OpExtract)
	}
	if err != nil {
		o.logger.Error("pipeline.extract.failed", append(o.entryLogAttrs(), "error", err)...)
		return entity.ExtractedText{}, err
	}

	if o.text.Ran && o.text.Text != text.Text && o.entry != nil {
		from := o.entry.Status
		if err := o.entry.InvalidateScore(o.now()); err != nil {
			return entity.ExtractedText{}, err
		}
		o.transitioned(from, o.entry)
	}
	o.text = text.Clone()

	o.logger.Info("pipeline.extract.ok", append(o.entryLogAttrs(),
		"ran", text.Ran,
		"empty", text.Empty(),
		"method", text.Method,
		"elapsed_ms", time.Since(c.started).Milliseconds(),
	)...)
	return text.Clone(), nil
}

// Parse sends the extracted text to the invoice service and moves the entry to Parsed.
// If the line was deleted a fresh Draft is started first.
func (o *Orchestrator) Parse(ctx context.Context) (entity.AccountingRecord, error) {
	o.mu.Lock()
	if o.doc == nil {
		o.mu.Unlock()
		return entity.AccountingRecord{}, common.WrapError(common.ErrNoDocument, OpParse)
	}
	if !o.text.Ran || o.text.Empty() {
		o.mu.Unlock()
		return entity.AccountingRecord{}, common.WrapError(common.ErrNoText, OpParse)
	}
	if o.entry != nil && o.entry.Status.Frozen() {
		o.mu.Unlock()
		return entity.AccountingRecord{}, common.WrapError(common.ErrFrozen, OpParse)
	}
	text := o.text.Text
	content := o.doc.Content
	c, err := o.beginLocked(ctx, OpParse, true)
	o.mu.Unlock()
	if err != nil {
		return entity.AccountingRecord{}, err
	}

	rec, err := o.parser.Parse(c.ctx, text)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.endLocked(c, err) {
		return entity.AccountingRecord{}, common.WrapError(common.ErrSuperseded, OpParse)
	}
	if err != nil {
		o.logger.Error("pipeline.parse.failed", append(o.entryLogAttrs(), "error", err)...)
		return entity.AccountingRecord{}, err
	}

	if o.entry == nil {
		o.entry = ledger.NewEntry(o.doc.ID, o.doc.Name, o.now())
	}
	from := o.entry.Status
	fp := fingerprint.Compute(content, rec.InvoiceNumber)
	if err := o.entry.ApplyParsed(rec, fp, o.now()); err != nil {
		return entity.AccountingRecord{}, err
	}
	o.transitioned(from, o.entry)

	o.logger.Info("pipeline.parse.ok", append(o.entryLogAttrs(),
		"invoice_number", rec.InvoiceNumber,
		"fingerprint", fp,
		"elapsed_ms", time.Since(c.started).Milliseconds(),
	)...)
	return rec, nil
}

// Score asks the credibility service to rate the current record. Any failure, including an
// out-of-range score, leaves the entry as it was.
func (o *Orchestrator) Score(ctx context.Context) (entity.CredibilityScore, error) {
	o.mu.Lock()
	if o.entry == nil {
		o.mu.Unlock()
		return entity.CredibilityScore{}, common.WrapError(common.ErrNoEntry, OpScore)
	}
	if o.entry.Status.Frozen() {
		o.mu.Unlock()
		return entity.CredibilityScore{}, common.WrapError(common.ErrFrozen, OpScore)
	}
	if o.entry.Record == nil {
		o.mu.Unlock()
		return entity.CredibilityScore{}, common.WrapError(common.ErrNoRecord, OpScore)
	}
	if !o.text.Ran || o.text.Empty() {
		o.mu.Unlock()
		return entity.CredibilityScore{}, common.WrapError(common.ErrNoText, OpScore)
	}
	text := o.text.Text
	rec := *o.entry.Record
	c, err := o.beginLocked(ctx, OpScore, true)
	o.mu.Unlock()
	if err != nil {
		return entity.CredibilityScore{}, err
	}

	res, err := o.scorer.Score(c.ctx, text, &rec)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.endLocked(c, err) {
		return entity.CredibilityScore{}, common.WrapError(common.ErrSuperseded, OpScore)
	}
	if err != nil {
		attrs := append(o.entryLogAttrs(), "error", err)
		if res.Clamped {
			attrs = append(attrs, "raw_score", res.Raw)
		}
		o.logger.Error("pipeline.score.failed", attrs...)
		return entity.CredibilityScore{}, err
	}

	score := entity.CredibilityScore{Value: res.Value, ScoredAt: o.now()}
	from := o.entry.Status
	if err := o.entry.ApplyScore(score, score.ScoredAt); err != nil {
		return entity.CredibilityScore{}, err
	}
	o.transitioned(from, o.entry)

	o.logger.Info("pipeline.score.ok", append(o.entryLogAttrs(),
		"score", score.Value,
		"elapsed_ms", time.Since(c.started).Milliseconds(),
	)...)
	return score, nil
}

// statusOf is Draft for a missing entry.
func statusOf(e *ledger.Entry) constants.LedgerStatus {
	if e == nil {
		return constants.LedgerStatusDraft
	}
	return e.Status
}
