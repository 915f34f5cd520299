// Package extract turns an uploaded document into raw text through an OCR engine.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/ocr"
)

// Engine is the OCR collaborator.
type Engine interface {
	ExtractTextFromDocument(ctx context.Context, name string, content []byte) (ocr.Result, error)
}

type Adapter struct {
	engine Engine
	logger *slog.Logger
}

func NewAdapter(engine Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, logger: logger}
}

// ExtractText runs OCR on doc. Empty content and unreadable formats are input errors and
// never reach the engine. An engine failure is an adapter error; a blank page is a
// successful result with empty Text and Ran set.
func (a *Adapter) ExtractText(ctx context.Context, doc entity.Document) (entity.ExtractedText, error) {
	if len(doc.Content) == 0 {
		return entity.ExtractedText{}, common.ErrEmptyDocument
	}
	if doc.Ext() == "" {
		return entity.ExtractedText{}, common.WrapError(common.ErrUnsupportedFmt, doc.Name)
	}
	start := time.Now()

	r, err := a.engine.ExtractTextFromDocument(ctx, doc.SourceName(), doc.Content)
	if err != nil {
		a.logger.Error("extract.ocr.failed",
			"document_id", doc.ID,
			"error", err,
			"warnings", r.Warnings,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedText{}, common.AdapterError("ocr extraction failed", err)
	}

	out := entity.ExtractedText{
		Ran:        true,
		Text:       r.Text,
		Pages:      r.Pages,
		Method:     r.Method,
		Confidence: r.Confidence,
		Warnings:   r.Warnings,
		Duration:   r.Duration,
	}
	if out.Empty() {
		a.logger.Warn("extract.ocr.empty", "document_id", doc.ID, "method", r.Method, "pages", r.Pages)
	} else {
		a.logger.Info("extract.ocr.ok",
			"document_id", doc.ID,
			"method", r.Method,
			"pages", r.Pages,
			"bytes", len(r.Text),
			"confidence", r.Confidence,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}
