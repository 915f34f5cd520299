package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ledger/constants"
)

type runFunc func(args []string) (stdout, stderr []byte, err error)

type fakeRunner struct {
	mu    sync.Mutex
	cmds  map[string]runFunc
	calls []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{cmds: map[string]runFunc{}}
}

func (f *fakeRunner) on(name string, fn runFunc) *fakeRunner {
	f.cmds[name] = fn
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	fn, ok := f.cmds[name]
	f.mu.Unlock()
	if !ok {
		return nil, []byte("command not stubbed"), errors.New("exec: " + name + ": not found")
	}
	return fn(args)
}

func (f *fakeRunner) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func newTestExtractor(t *testing.T, r Runner, cfg Config) *Extractor {
	t.Helper()
	cfg.TempDir = t.TempDir()
	return NewExtractor(cfg, nil, WithRunner(r))
}

func TestExtractImage(t *testing.T) {
	r := newFakeRunner().on("tesseract", func(args []string) ([]byte, []byte, error) {
		return []byte("Invoice #123\r\n\r\n\r\n\r\nTotal\t\t$500.00  \n-----\n"), nil, nil
	})
	e := newTestExtractor(t, r, Config{})

	res, err := e.ExtractTextFromDocument(context.Background(), "scan.PNG", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	assert.Equal(t, "Invoice #123\n\nTotal $500.00", res.Text)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, constants.IMAGE, res.SourceType)
	assert.Equal(t, "eng", res.Language)
	assert.Greater(t, res.Confidence, float32(0.5))
}

func TestExtractPDFTextLayer(t *testing.T) {
	r := newFakeRunner().on("pdftotext", func(args []string) ([]byte, []byte, error) {
		assert.Equal(t, "-", args[len(args)-1])
		return []byte("INVOICE 2024-03-01\fpage two\f"), nil, nil
	})
	e := newTestExtractor(t, r, Config{})

	res, err := e.ExtractTextFromDocument(context.Background(), "inv.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 0, r.called("pdftoppm"))
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	r := newFakeRunner().
		on("pdftotext", func(args []string) ([]byte, []byte, error) {
			return []byte("\f"), nil, nil
		}).
		on("pdftoppm", func(args []string) ([]byte, []byte, error) {
			prefix := args[len(args)-1]
			for _, n := range []string{"-1.png", "-2.png", "-3.png"} {
				if err := os.WriteFile(prefix+n, []byte("png"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		}).
		on("tesseract", func(args []string) ([]byte, []byte, error) {
			return []byte("text of " + filepath.Base(args[0])), nil, nil
		})
	e := newTestExtractor(t, r, Config{MaxPages: 2})

	res, err := e.ExtractTextFromDocument(context.Background(), "scan.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "text of page-1.png")
	assert.Contains(t, res.Text, "text of page-2.png")
	assert.NotContains(t, res.Text, "page-3")
	assert.Equal(t, 2, r.called("tesseract"))
	assert.NotEmpty(t, res.Warnings)
}

func TestExtractToolFailureIsError(t *testing.T) {
	r := newFakeRunner().on("tesseract", func(args []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	})
	e := newTestExtractor(t, r, Config{})

	_, err := e.ExtractTextFromDocument(context.Background(), "scan.jpg", []byte("jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
}

func TestExtractBlankImageIsNotAnError(t *testing.T) {
	r := newFakeRunner().on("tesseract", func(args []string) ([]byte, []byte, error) {
		return []byte("  \n\n"), nil, nil
	})
	e := newTestExtractor(t, r, Config{})

	res, err := e.ExtractTextFromDocument(context.Background(), "blank.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, float32(0), res.Confidence)
}

func TestExtractPlainText(t *testing.T) {
	e := newTestExtractor(t, newFakeRunner(), Config{})

	res, err := e.ExtractTextFromDocument(context.Background(), "notes.txt", []byte("Invoice #7\r\nTotal 10.00 EUR"))
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Method)
	assert.Equal(t, "Invoice #7\nTotal 10.00 EUR", res.Text)
}

func TestExtractUnsupported(t *testing.T) {
	e := newTestExtractor(t, newFakeRunner(), Config{})
	_, err := e.ExtractTextFromDocument(context.Background(), "invoice.docx", []byte("PK"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestNormalize(t *testing.T) {
	in := "Total :  1\u202f250,00 \u2013 EUR\r\n\r\n\r\n\r\nDue 2024-03-05"
	assert.Equal(t, "Total : 1 250,00 - EUR\n\nDue 2024-03-05", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestMeanTSVConfidence(t *testing.T) {
	header := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"
	rows := []string{
		header,
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tInvoice",
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\t#123",
		"2\t1\t1\t0\t0\t0\t0\t0\t10\t10\t-1",
	}
	got := meanTSVConfidence(strings.Join(rows, "\n"))
	assert.InDelta(t, 0.8, got, 0.0001)
	assert.Equal(t, float32(0), meanTSVConfidence(header))
}

func TestPageNumberOrdersPastNine(t *testing.T) {
	assert.Equal(t, 10, pageNumber("/tmp/x/page-10.png"))
	assert.Equal(t, 2, pageNumber("page-02.png"))
	assert.Less(t, pageNumber("page-9.png"), pageNumber("page-10.png"))
}

func TestBlendConfidence(t *testing.T) {
	assert.Equal(t, float32(0.4), blendConfidence(0, 0.4))
	assert.InDelta(t, 0.7*0.9+0.3*0.5, blendConfidence(0.9, 0.5), 0.0001)
}

func TestExtractImageBlendsTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t100\tInvoice\n"
	r := newFakeRunner().on("tesseract", func(args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			assert.Contains(t, args, "--psm")
			return []byte(tsv), nil, nil
		}
		assert.NotContains(t, args, "--psm")
		return []byte("hello"), nil, nil
	})
	e := newTestExtractor(t, r, Config{EnableTSVConfidence: true, PSM: 6})

	res, err := e.ExtractTextFromDocument(context.Background(), "scan.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.called("tesseract"))
	assert.InDelta(t, 0.7*1.0+0.3*0.2, res.Confidence, 0.0001)
}
