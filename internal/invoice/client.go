// Package invoice wraps the remote service that turns invoice text into an accounting record.
package invoice

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/remote"
)

type parseRequest struct {
	Data string `json:"data"`
}

// Parse sends text to the parsing service once and returns the validated record.
//
// Errors: empty text is an input error and no request is made; transport failures and
// non-2xx responses are adapter errors; a response that fails the schema or record
// validation is a validation error.
func (c *Client) Parse(ctx context.Context, text string) (entity.AccountingRecord, error) {
	if strings.TrimSpace(text) == "" {
		return entity.AccountingRecord{}, common.ErrNoText
	}
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	c.logger.Info("invoice.parse.start",
		"req_id", rid,
		"url", c.cfg.URL,
		"text_len", len(text),
	)

	raw, status, err := remote.SendJSON(ctx, c.http, c.cfg.URL, parseRequest{Data: text}, c.cfg.Headers, c.logger)
	if err != nil {
		c.logger.Error("invoice.parse.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AccountingRecord{}, common.AdapterError("invoice parsing call failed", err)
	}

	cleaned, _, err := NormalizeAndSanitizeJSON(raw, c.logger)
	if err != nil {
		c.logger.Error("invoice.parse.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AccountingRecord{}, common.ValidationErrorf("invoice response is not a JSON object: %v", err)
	}

	if err := invoiceSchema.Validate(cleaned); err != nil {
		c.logger.Error("invoice.parse.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(cleaned),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AccountingRecord{}, common.ValidationErrorf("invoice response failed schema validation: %v", err)
	}

	var out entity.AccountingRecord
	if err := json.Unmarshal(cleaned, &out); err != nil {
		c.logger.Error("invoice.parse.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AccountingRecord{}, common.ValidationErrorf("invoice response could not be decoded: %v", err)
	}
	if v := out.Validate(); v.HasErrors() {
		c.logger.Error("invoice.parse.record_invalid",
			"req_id", rid, "error", v.ErrorMessage(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AccountingRecord{}, common.ValidationErrorf("invoice response is invalid: %s", v.ErrorMessage())
	}

	c.logger.Info("invoice.parse.ok",
		"req_id", rid,
		"invoice_number", out.InvoiceNumber,
		"date", out.Date,
		"total", out.TotalAmount.String(),
		"currency", out.Currency,
		"type", out.Type,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
