package credibility

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
)

func testRecord() *entity.AccountingRecord {
	return &entity.AccountingRecord{
		InvoiceNumber: "123",
		Date:          "2024-03-01",
		ClientName:    "ACME",
		Type:          "Services",
		TotalAmount:   decimal.NewFromInt(500),
		TaxAmount:     decimal.NewFromInt(0),
		Currency:      "USD",
	}
}

func serve(t *testing.T, status int, body string, calls *atomic.Int32) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		b, _ := io.ReadAll(r.Body)
		var req struct {
			Invoice       string         `json:"invoice"`
			AccountingRow map[string]any `json:"accounting_row"`
		}
		assert.NoError(t, json.Unmarshal(b, &req))
		assert.NotEmpty(t, req.Invoice)
		assert.Equal(t, "123", req.AccountingRow["invoice_number"])
		assert.Equal(t, float64(500), req.AccountingRow["total_amount"])
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL}, nil).WithHTTPClient(srv.Client())
}

func TestScoreSuccess(t *testing.T) {
	res, err := serve(t, http.StatusOK, `{"credibility": 72}`, nil).Score(context.Background(), "Invoice #123, $500", testRecord())
	require.NoError(t, err)
	assert.Equal(t, 72.0, res.Value)
	assert.False(t, res.Clamped)
}

func TestScoreBounds(t *testing.T) {
	for _, v := range []string{"0", "100", "99.5"} {
		t.Run(v, func(t *testing.T) {
			res, err := serve(t, http.StatusOK, `{"credibility": `+v+`}`, nil).Score(context.Background(), "x", testRecord())
			require.NoError(t, err)
			assert.False(t, res.Clamped)
		})
	}
}

func TestScoreOutOfRangeIsClampedAndFlagged(t *testing.T) {
	tests := []struct {
		body    string
		clamped float64
		raw     float64
	}{
		{`{"credibility": 140}`, 100, 140},
		{`{"credibility": -3}`, 0, -3},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			res, err := serve(t, http.StatusOK, tt.body, nil).Score(context.Background(), "x", testRecord())
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.ErrorIs(t, err, ErrOutOfRange)
			assert.True(t, res.Clamped)
			assert.Equal(t, tt.clamped, res.Value)
			assert.Equal(t, tt.raw, res.Raw)
		})
	}
}

func TestScoreInvalidPayload(t *testing.T) {
	for _, body := range []string{`{}`, `{"credibility":"high"}`, `{"credibility":null}`, `nope`} {
		t.Run(body, func(t *testing.T) {
			_, err := serve(t, http.StatusOK, body, nil).Score(context.Background(), "x", testRecord())
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestScoreNon2xx(t *testing.T) {
	var calls atomic.Int32
	res, err := serve(t, http.StatusBadGateway, `bad gateway`, &calls).Score(context.Background(), "x", testRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAdapter)
	assert.Equal(t, Result{}, res, "no placeholder score")
	assert.Equal(t, int32(1), calls.Load())
}

func TestScoreInputValidation(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, http.StatusOK, `{"credibility": 50}`, &calls)

	_, err := c.Score(context.Background(), "", testRecord())
	assert.ErrorIs(t, err, common.ErrNoText)

	_, err = c.Score(context.Background(), "text", nil)
	assert.ErrorIs(t, err, common.ErrNoRecord)

	assert.Equal(t, int32(0), calls.Load())
}
