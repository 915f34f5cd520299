package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-ledger/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	EnableTSVConfidence bool
	PSM                 int // e.g., 6 is good for uniform block of text
	OEM                 int // 1 = LSTM; leave 0 to use default

	TempDir string // where uploaded bytes are spooled; "" = os.TempDir()
}

type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE | constants.TXT
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "plain"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Extractor{cfg: cfg, runner: commandRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractTextFromDocument spools content to a temp file named after the document
// and runs Extract on it.
func (e *Extractor) ExtractTextFromDocument(ctx context.Context, name string, content []byte) (Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(name))
	if constants.MapExtToFormat(ext) == constants.TXT {
		start := time.Now()
		txt := Normalize(string(content))
		return Result{
			Text:       txt,
			Pages:      1,
			SourceType: constants.TXT,
			Method:     "plain",
			Duration:   time.Since(start),
			Confidence: heuristicConfidence(txt),
		}, nil
	}

	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "ledger-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tempdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "document."+ext)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return Result{}, fmt.Errorf("spool document: %w", err)
	}
	return e.Extract(ctx, path)
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.TXT:
		b, err := os.ReadFile(path)
		if err != nil {
			return Result{SourceType: constants.TXT}, err
		}
		txt := Normalize(string(b))
		return Result{
			Text: txt, Pages: 1, SourceType: constants.TXT, Method: "plain",
			Duration: time.Since(start), Confidence: heuristicConfidence(txt),
		}, nil
	default:
		e.logger.Error("ocr.extract.unsupported_extension", "extension", ext)
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}
