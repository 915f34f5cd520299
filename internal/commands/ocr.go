package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ledger/internal/app"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/extract"
	"github.com/joseph-ayodele/invoice-ledger/internal/ocr"
)

// newOCRCommand runs only the extraction step; no store or remote service is needed.
func newOCRCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr FILE",
		Short: "Print the text extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			logger := root.logger(cmd.ErrOrStderr())

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			doc := entity.NewDocument(filepath.Base(args[0]), "", content, time.Now().UTC())

			x := extract.NewAdapter(ocr.NewExtractor(app.OCRConfig(cfg.OCR), logger), logger)

			start := time.Now()
			text, err := x.ExtractText(cmd.Context(), doc)
			if err != nil {
				return err
			}
			logger.Info("ocr.ok",
				"method", text.Method,
				"pages", text.Pages,
				"confidence", text.Confidence,
				"bytes", len(text.Text),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text.Text)
			return nil
		},
	}
}
