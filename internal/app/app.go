package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-ledger/internal/async"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/credibility"
	"github.com/joseph-ayodele/invoice-ledger/internal/export"
	"github.com/joseph-ayodele/invoice-ledger/internal/extract"
	"github.com/joseph-ayodele/invoice-ledger/internal/invoice"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
	"github.com/joseph-ayodele/invoice-ledger/internal/metrics"
	"github.com/joseph-ayodele/invoice-ledger/internal/ocr"
	"github.com/joseph-ayodele/invoice-ledger/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-ledger/internal/repository"
)

// App holds the wired collaborators shared by the CLI and the daemon.
type App struct {
	Config  *common.Config
	Logger  *slog.Logger
	Store   repo.Store
	Book    *ledger.Book
	Metrics *metrics.Metrics
	Export  *export.Service

	Extractor pipeline.TextExtractor
	Parser    pipeline.RecordParser
	Scorer    pipeline.Scorer
}

// New opens the configured store and builds the adapters. Close releases the store.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, common.WrapError(err, "open ledger store")
	}
	if err := repo.HealthCheck(ctx, store, cfg.Database.DialTimeout, logger); err != nil {
		repo.Close(store, logger)
		return nil, common.WrapError(err, "ping ledger store")
	}

	book := ledger.NewBook(store, logger)
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Book:    book,
		Metrics: metrics.Default(),
		Export:  export.NewService(book, logger),
	}

	a.Extractor = extract.NewAdapter(ocr.NewExtractor(OCRConfig(cfg.OCR), logger), logger)
	a.Parser = invoice.NewClient(invoice.Config{
		URL:     cfg.Remote.InvoiceURL,
		Timeout: cfg.Remote.Timeout,
	}, logger)
	a.Scorer = credibility.NewClient(credibility.Config{
		URL:     cfg.Remote.CredibilityURL,
		Timeout: cfg.Remote.Timeout,
	}, logger)
	return a, nil
}

// OCRConfig maps the OCR config section onto the extractor's settings.
func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Pdftotext:     c.Pdftotext,
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.TesseractLang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
	}
}

// NewOrchestrator returns a fresh orchestrator recording into the shared Book.
func (a *App) NewOrchestrator() *pipeline.Orchestrator {
	return pipeline.New(a.Extractor, a.Parser, a.Scorer,
		pipeline.WithBook(a.Book),
		pipeline.WithRecorder(a.Metrics),
		pipeline.WithLogger(a.Logger),
	)
}

// NewQueue starts a batch queue sized from the Queue config section.
func (a *App) NewQueue(opts ...async.Option) *async.ProcessorQueue {
	all := append(async.FromConfig(a.Config.Queue), async.WithMetrics(a.Metrics))
	return async.NewProcessorQueue(a.NewOrchestrator, a.Logger, append(all, opts...)...)
}

func (a *App) Close() {
	repo.Close(a.Store, a.Logger)
}
