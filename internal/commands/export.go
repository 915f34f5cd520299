package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/export"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	var (
		out        string
		fromStr    string
		toStr      string
		sharedOnly bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the recorded ledger to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter export.Filter
			var err error
			if filter.From, err = parseDateFlag("from", fromStr); err != nil {
				return err
			}
			if filter.To, err = parseDateFlag("to", toStr); err != nil {
				return err
			}
			filter.SharedOnly = sharedOnly

			a, err := root.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.Export.ExportLedgerXLSX(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "ledger.xlsx", "output XLSX path")
	cmd.Flags().StringVar(&fromStr, "from", "", "first invoice date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "last invoice date YYYY-MM-DD")
	cmd.Flags().BoolVar(&sharedOnly, "shared", false, "only entries shared with the auditor")
	return cmd
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, common.InputErrorf("invalid --%s date, use YYYY-MM-DD", name)
	}
	return &t, nil
}
