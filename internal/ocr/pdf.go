package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-ledger/constants"
)

// pageBreak separates OCR'd pages in the combined text.
const pageBreak = "\n\f\n"

// extractPDF reads the embedded text layer and only rasterizes when it is empty or
// unreadable, which is the case for scanned invoices.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.PDF}

	txt, pages, err := e.pdfTextLayer(ctx, path)
	switch {
	case err != nil:
		res.Warnings = append(res.Warnings, "pdftotext: "+err.Error())
	case Normalize(txt) != "":
		res.Text = Normalize(txt)
		res.Pages = pages
		res.Method = "pdf-text"
		res.Confidence = heuristicConfidence(res.Text)
		return res, nil
	default:
		res.Warnings = append(res.Warnings, "pdf has no text layer; falling back to ocr")
	}
	e.logger.Info("ocr.pdf.fallback_to_ocr", "path", path, "pages", pages)

	txt, pages, warns, err := e.pdfOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)
	res.Pages = pages
	res.Method = "pdf-ocr"
	res.Language = e.cfg.TesseractLang
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}

// pdfTextLayer runs "pdftotext -layout <pdf> -"; pages are counted by form feeds.
func (e *Extractor) pdfTextLayer(ctx context.Context, path string) (string, int, error) {
	out, stderr, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(stderr)))
	}
	text := string(out)
	return text, 1 + strings.Count(strings.TrimRight(text, "\f"), "\f"), nil
}

// pdfOCR rasterizes with pdftoppm and runs tesseract page by page. Single page failures
// become warnings; only a total failure is an error.
func (e *Extractor) pdfOCR(ctx context.Context, path string) (string, int, []string, error) {
	dir, err := os.MkdirTemp(e.cfg.TempDir, "ledger-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.tempdir.cleanup_failed", "dir", dir, "error", err)
		}
	}()

	images, err := e.rasterize(ctx, path, filepath.Join(dir, "page"))
	if err != nil {
		return "", 0, nil, err
	}

	var warns []string
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		warns = append(warns, fmt.Sprintf("only the first %d of %d pages were read", e.cfg.MaxPages, len(images)))
		images = images[:e.cfg.MaxPages]
	}

	texts := make([]string, 0, len(images))
	for _, img := range images {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("%s: %v", filepath.Base(img), err))
			continue
		}
		warns = append(warns, w...)
		texts = append(texts, txt)
	}
	if len(texts) == 0 {
		return "", len(images), warns, fmt.Errorf("tesseract failed on all %d pages", len(images))
	}
	return strings.Join(texts, pageBreak), len(images), warns, nil
}

// rasterize renders every page to <prefix>-N.png and returns them in page order.
func (e *Extractor) rasterize(ctx context.Context, pdf, prefix string) ([]string, error) {
	_, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", pdf, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	images, _ := filepath.Glob(prefix + "-*.png")
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm rendered no pages")
	}
	slices.SortFunc(images, func(a, b string) int { return pageNumber(a) - pageNumber(b) })
	return images, nil
}

// pageNumber parses N out of "page-N.png"; pdftoppm zero-pads N.
func pageNumber(img string) int {
	base := strings.TrimSuffix(filepath.Base(img), ".png")
	n, _ := strconv.Atoi(base[strings.LastIndexByte(base, '-')+1:])
	return n
}
