// Package credibility wraps the remote service that scores how well a record matches its source text.
package credibility

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/remote"
)

// DefaultURL is the credibility endpoint of the reference deployment.
const DefaultURL = "http://localhost:5000/api/credibility"

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// ErrOutOfRange is wrapped by the error returned for scores outside [MinScore, MaxScore].
var ErrOutOfRange = common.NewAppError("SCORE_OUT_OF_RANGE", "credibility score outside [0,100]", common.ErrValidation)

type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// WithHTTPClient swaps the underlying http client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

// Result is a score as returned by the service. When Clamped is set, Raw was out of range
// and Value holds the clamped number; Score returns ErrOutOfRange alongside it.
type Result struct {
	Value   float64
	Raw     float64
	Clamped bool
}

type scoreRequest struct {
	Invoice       string                  `json:"invoice"`
	AccountingRow entity.AccountingRecord `json:"accounting_row"`
}

var responseSchema = remote.NewSchema(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"credibility": map[string]any{"type": "number"},
	},
	"required": []string{"credibility"},
})

// Score asks the service once for a credibility score of rec against text.
func (c *Client) Score(ctx context.Context, text string, rec *entity.AccountingRecord) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, common.ErrNoText
	}
	if rec == nil {
		return Result{}, common.ErrNoRecord
	}
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	c.logger.Info("credibility.score.start",
		"req_id", rid,
		"url", c.cfg.URL,
		"invoice_number", rec.InvoiceNumber,
		"text_len", len(text),
	)

	raw, status, err := remote.SendJSON(ctx, c.http, c.cfg.URL, scoreRequest{Invoice: text, AccountingRow: *rec}, c.cfg.Headers, c.logger)
	if err != nil {
		c.logger.Error("credibility.score.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.AdapterError("credibility call failed", err)
	}

	if err := responseSchema.Validate(raw); err != nil {
		c.logger.Error("credibility.score.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.ValidationErrorf("credibility response failed schema validation: %v", err)
	}
	var body struct {
		Credibility float64 `json:"credibility"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{}, common.ValidationErrorf("credibility response could not be decoded: %v", err)
	}

	res := clamp(body.Credibility)
	if res.Clamped {
		c.logger.Warn("credibility.score.out_of_range",
			"req_id", rid, "raw", res.Raw, "clamped", res.Value,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, fmt.Errorf("score %v: %w", res.Raw, ErrOutOfRange)
	}

	c.logger.Info("credibility.score.ok",
		"req_id", rid,
		"score", res.Value,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func clamp(v float64) Result {
	r := Result{Value: v, Raw: v}
	switch {
	case v < MinScore:
		r.Value, r.Clamped = MinScore, true
	case v > MaxScore:
		r.Value, r.Clamped = MaxScore, true
	}
	return r
}
