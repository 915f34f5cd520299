package ocr

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-ledger/constants"
)

// tesseract TSV column holding the per-word confidence (0..100, -1 for non-words)
const tsvConfColumn = 10

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.IMAGE, Method: "image-ocr", Language: e.cfg.TesseractLang, Pages: 1}

	txt, warn, err := e.tesseractOCR(ctx, path)
	res.Warnings = warn
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)

	var engineConf float32
	if e.cfg.EnableTSVConfidence {
		c, err := e.tesseractTSVConfidence(ctx, path)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
		engineConf = c
	}
	res.Confidence = blendConfidence(engineConf, heuristicConfidence(res.Text))
	return res, nil
}

// tesseractArgs builds "tesseract <img> stdout -l <lang> [flags] [configs]".
func (e *Extractor) tesseractArgs(path string, withTuning bool, configs ...string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if withTuning && e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if withTuning && e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, configs...)
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, false)...)
	if err != nil {
		return "", []string{string(stderr)}, fmt.Errorf("tesseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil, nil
}

func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, error) {
	out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, true, "tsv")...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages word confidences of tesseract TSV output, scaled to 0..1.
func meanTSVConfidence(tsv string) float32 {
	var sum float64
	var words int
	sc := bufio.NewScanner(strings.NewReader(tsv))
	sc.Scan() // header
	for sc.Scan() {
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) <= tsvConfColumn {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[tsvConfColumn]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		words++
	}
	if words == 0 {
		return 0
	}
	return float32(sum / float64(words) / 100)
}
