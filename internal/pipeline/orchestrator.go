// Package pipeline sequences extraction, parsing, scoring and the ledger lifecycle for
// one open document at a time.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/credibility"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// TextExtractor turns a document into raw text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc entity.Document) (entity.ExtractedText, error)
}

// RecordParser turns raw text into an accounting record.
type RecordParser interface {
	Parse(ctx context.Context, text string) (entity.AccountingRecord, error)
}

// Scorer rates how well a record matches its source text.
type Scorer interface {
	Score(ctx context.Context, text string, rec *entity.AccountingRecord) (credibility.Result, error)
}

// Recorder receives adapter call outcomes and status transitions. Optional.
type Recorder interface {
	AdapterCall(op string, err error, elapsed time.Duration)
	Transition(from, to constants.LedgerStatus)
}

const (
	OpExtract = "extract"
	OpParse   = "parse"
	OpScore   = "score"
)

// call is the single adapter call allowed in flight.
type call struct {
	op       string
	ctx      context.Context
	cancel   context.CancelFunc
	gen      uint64
	rev      uint64
	started  time.Time
	checkRev bool
}

// Orchestrator holds the state of the open document. All fields below mu are guarded by it;
// adapter calls run without holding it.
type Orchestrator struct {
	extractor TextExtractor
	parser    RecordParser
	scorer    Scorer
	book      *ledger.Book
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	doc      *entity.Document
	text     entity.ExtractedText
	entry    *ledger.Entry
	gen      uint64 // bumped when the document is replaced or closed
	rev      uint64 // bumped on every user change to the record or entry
	inflight *call
}

type Option func(*Orchestrator)

// WithBook sets the ledger sealed entries are committed to.
func WithBook(b *ledger.Book) Option {
	return func(o *Orchestrator) { o.book = b }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(extractor TextExtractor, parser RecordParser, scorer Scorer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor: extractor,
		parser:    parser,
		scorer:    scorer,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.book == nil {
		o.book = ledger.NewBook(ledger.NewMemoryStore(), o.logger)
	}
	return o
}

// Book returns the ledger of record.
func (o *Orchestrator) Book() *ledger.Book { return o.book }

// beginLocked registers a new adapter call. Caller holds mu.
func (o *Orchestrator) beginLocked(ctx context.Context, op string, checkRev bool) (*call, error) {
	if o.inflight != nil {
		o.logger.Warn("pipeline.call.rejected", "op", op, "in_flight", o.inflight.op, "generation", o.gen)
		return nil, common.WrapError(common.ErrInFlight, op)
	}
	cctx, cancel := context.WithCancel(ctx)
	c := &call{
		op:       op,
		ctx:      cctx,
		cancel:   cancel,
		gen:      o.gen,
		rev:      o.rev,
		started:  time.Now(),
		checkRev: checkRev,
	}
	o.inflight = c
	return c, nil
}

// endLocked releases c and reports whether its result may still be applied. Caller holds mu.
func (o *Orchestrator) endLocked(c *call, err error) bool {
	c.cancel()
	if o.inflight == c {
		o.inflight = nil
	}
	if o.recorder != nil {
		o.recorder.AdapterCall(c.op, err, time.Since(c.started))
	}
	current := c.gen == o.gen && (!c.checkRev || c.rev == o.rev)
	if !current {
		o.logger.Info("pipeline.call.superseded",
			"op", c.op,
			"call_generation", c.gen,
			"generation", o.gen,
			"elapsed_ms", time.Since(c.started).Milliseconds(),
		)
	}
	return current
}

// abortLocked cancels any pending call and invalidates its eventual response.
func (o *Orchestrator) abortLocked() {
	if o.inflight != nil {
		o.inflight.cancel()
		o.inflight = nil
	}
	o.gen++
}

func (o *Orchestrator) transitioned(from constants.LedgerStatus, e *ledger.Entry) {
	if o.recorder != nil && e != nil && from != e.Status {
		o.recorder.Transition(from, e.Status)
	}
}

func (o *Orchestrator) entryLogAttrs() []any {
	attrs := []any{"generation", o.gen}
	if o.entry != nil {
		attrs = append(attrs, "entry_id", o.entry.ID, "status", o.entry.Status)
	}
	return attrs
}
