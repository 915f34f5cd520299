package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

type listFunc func(ctx context.Context) ([]*ledger.Entry, error)

func (f listFunc) List(ctx context.Context) ([]*ledger.Entry, error) { return f(ctx) }

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sealed(t *testing.T, number, date string, shared bool) *ledger.Entry {
	t.Helper()
	e := ledger.NewEntry("doc", number+".pdf", t0)
	require.NoError(t, e.ApplyParsed(entity.AccountingRecord{
		InvoiceNumber: number,
		Date:          date,
		ClientName:    "ACME",
		Type:          "Services",
		TotalAmount:   decimal.RequireFromString("1190.5"),
		TaxAmount:     decimal.RequireFromString("190"),
		Currency:      "EUR",
	}, "fp-"+number, t0))
	require.NoError(t, e.ApplyScore(entity.CredibilityScore{Value: 88}, t0))
	require.NoError(t, e.Approve(t0))
	require.NoError(t, e.Seal("att-"+number, t0))
	if shared {
		require.NoError(t, e.Share(t0.Add(time.Hour)))
	}
	return e
}

func readRows(t *testing.T, b []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestExportLedgerXLSX(t *testing.T) {
	book := ledger.NewBook(nil, nil)
	ctx := context.Background()
	a := sealed(t, "A-1", "2024-03-01", true)
	require.NoError(t, book.Commit(ctx, a))
	require.NoError(t, book.Commit(ctx, sealed(t, "A-2", "2024-04-15", false)))

	b, err := NewService(book, nil).ExportLedgerXLSX(ctx, Filter{})
	require.NoError(t, err)

	rows := readRows(t, b)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])

	first := rows[1]
	assert.Equal(t, "2024-03-01", first[0])
	assert.Equal(t, "A-1", first[1])
	assert.Equal(t, "ACME", first[2])
	assert.Equal(t, "1190.5", first[4])
	assert.Equal(t, "190", first[5])
	assert.Equal(t, "EUR", first[6])
	assert.Equal(t, "88", first[7])
	assert.Equal(t, "SHARED", first[8])
	assert.Equal(t, "fp-A-1", first[9])
	assert.Equal(t, "att-A-1", first[10])
	assert.Equal(t, "2024-03-01T09:00:00Z", first[11])
	assert.Equal(t, "2024-03-01T10:00:00Z", first[12])
}

func TestExportFilters(t *testing.T) {
	ctx := context.Background()
	entries := []*ledger.Entry{
		sealed(t, "A-1", "2024-03-01", true),
		sealed(t, "A-2", "2024-04-15", false),
		sealed(t, "A-3", "2024-05-20", true),
	}
	svc := NewService(listFunc(func(context.Context) ([]*ledger.Entry, error) { return entries, nil }), nil)

	from := time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	b, err := svc.ExportLedgerXLSX(ctx, Filter{From: &from, To: &to})
	require.NoError(t, err)
	rows := readRows(t, b)
	require.Len(t, rows, 2)
	assert.Equal(t, "A-2", rows[1][1])

	b, err = svc.ExportLedgerXLSX(ctx, Filter{SharedOnly: true})
	require.NoError(t, err)
	rows = readRows(t, b)
	require.Len(t, rows, 3)
	assert.Equal(t, "A-1", rows[1][1])
	assert.Equal(t, "A-3", rows[2][1])
}

func TestExportListFailure(t *testing.T) {
	svc := NewService(listFunc(func(context.Context) ([]*ledger.Entry, error) {
		return nil, errors.New("db down")
	}), nil)
	_, err := svc.ExportLedgerXLSX(context.Background(), Filter{})
	assert.ErrorContains(t, err, "db down")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "ü…", truncate("üöä", 2))
}
