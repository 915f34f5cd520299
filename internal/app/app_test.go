package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/async"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/export"
)

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	inv := jsonServer(t, `{"invoice_number":"INV-7","date":"2024-06-30","client_name":"Initech",
		"type":"Services","total_amount":"1200.00","tax_amount":"200.00","currency":"EUR"}`)
	cred := jsonServer(t, `{"credibility": 91}`)

	cfg := common.DefaultConfig()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Remote.InvoiceURL = inv.URL
	cfg.Remote.CredibilityURL = cred.URL
	cfg.Queue.Workers = 2
	return cfg
}

func TestEndToEndOnSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	o := a.NewOrchestrator()
	o.Upload(ctx, "inv-7.txt", "", []byte("Invoice INV-7\nTotal EUR 1200.00"))
	_, err = o.Extract(ctx)
	require.NoError(t, err)
	rec, err := o.Parse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-7", rec.InvoiceNumber)
	score, err := o.Score(ctx)
	require.NoError(t, err)
	assert.Equal(t, 91.0, score.Value)
	require.NoError(t, o.Approve(ctx))
	require.NoError(t, o.Seal(ctx, "sig-7"))

	entries, err := a.Book.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, constants.LedgerStatusSealed, entries[0].Status)
	assert.Equal(t, "sig-7", entries[0].Attestation)

	b, err := a.Export.ExportLedgerXLSX(ctx, export.Filter{})
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestQueueUsesConfig(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	done := make(chan async.Result, 1)
	q := a.NewQueue(async.WithResults(func(r async.Result) { done <- r }))
	_, err = q.Enqueue(ctx, async.Job{Name: "inv-7.txt", Content: []byte("Invoice INV-7")})
	require.NoError(t, err)
	q.Shutdown(ctx)

	r := <-done
	require.NoError(t, r.Err)
	assert.Equal(t, constants.LedgerStatusScored, r.Snapshot.Status)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Database.Driver = "mysql"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrInput)
}
