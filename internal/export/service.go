package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// EntryLister is the read side of the ledger; *ledger.Book satisfies it.
type EntryLister interface {
	List(ctx context.Context) ([]*ledger.Entry, error)
}

// Filter narrows an export. Zero value exports everything recorded.
type Filter struct {
	From       *time.Time // invoice date, inclusive
	To         *time.Time // invoice date, inclusive
	SharedOnly bool       // only entries already shared with the auditor
}

// Service produces XLSX bytes of the recorded ledger for auditors.
type Service struct {
	entries EntryLister
	logger  *slog.Logger
}

func NewService(entries EntryLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{entries: entries, logger: logger}
}

const SheetName = "Ledger"

var headers = []string{
	"Invoice Date",
	"Invoice Number",
	"Client",
	"Type",
	"Total Amount",
	"Tax Amount",
	"Currency",
	"Credibility",
	"Status",
	"Fingerprint",
	"Attestation",
	"Sealed At",
	"Shared At",
	"Corrects Entry",
	"Document",
}

// ExportLedgerXLSX returns a workbook with one row per recorded entry.
// If only From is given the window runs to today; if only To, from the beginning.
func (s *Service) ExportLedgerXLSX(ctx context.Context, filter Filter) ([]byte, error) {
	start := time.Now()

	fromDate, toDate := normalizeWindow(filter.From, filter.To)

	all, err := s.entries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	var rows []*ledger.Entry
	for _, e := range all {
		if e.Record == nil {
			continue
		}
		if filter.SharedOnly && e.Status != constants.LedgerStatusShared {
			continue
		}
		if !inWindow(e.Record.Date, fromDate, toDate) {
			continue
		}
		rows = append(rows, e)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, e := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		r := e.Record
		write(1, r.Date)
		write(2, r.InvoiceNumber)
		write(3, r.ClientName)
		write(4, r.Type)
		write(5, r.TotalAmount.InexactFloat64())
		write(6, r.TaxAmount.InexactFloat64())
		write(7, r.Currency)
		if e.Score != nil {
			write(8, e.Score.Value)
		}
		write(9, string(e.Status))
		write(10, e.Fingerprint)
		write(11, e.Attestation)
		write(12, formatTime(e.SealedAt))
		write(13, formatTime(e.SharedAt))
		if e.CorrectsID != nil {
			write(14, e.CorrectsID.String())
		}
		write(15, truncate(e.DocumentName, 140))
	}

	_ = f.SetColWidth(SheetName, "A", "A", 14) // date
	_ = f.SetColWidth(SheetName, "B", "B", 18) // number
	_ = f.SetColWidth(SheetName, "C", "C", 28) // client
	_ = f.SetColWidth(SheetName, "D", "D", 16)
	_ = f.SetColWidth(SheetName, "E", "F", 14) // amounts
	_ = f.SetColWidth(SheetName, "J", "J", 66) // fingerprint
	_ = f.SetColWidth(SheetName, "L", "M", 22)
	_ = f.SetColWidth(SheetName, "N", "N", 38)
	_ = f.SetColWidth(SheetName, "O", "O", 40)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"skipped", len(all)-len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func normalizeWindow(from, to *time.Time) (*time.Time, *time.Time) {
	day := func(t time.Time) *time.Time {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	var fromDate, toDate *time.Time
	if from != nil {
		fromDate = day(*from)
	}
	if to != nil {
		toDate = day(*to)
	}
	if fromDate != nil && toDate == nil {
		toDate = day(time.Now().UTC())
	}
	return fromDate, toDate
}

func inWindow(date string, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
