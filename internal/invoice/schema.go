package invoice

import (
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/remote"
)

// BuildInvoiceJSONSchema returns the JSON schema a sanitized parser response must satisfy.
func BuildInvoiceJSONSchema() map[string]any {
	props := map[string]any{
		"invoice_number": map[string]any{"type": "string", "minLength": 1, "maxLength": 64},
		"date":           map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"client_name":    map[string]any{"type": "string", "minLength": 1},
		"type":           map[string]any{"type": "string", "minLength": 1},
		"total_amount":   amountProp(),
		"tax_amount":     amountProp(),
		"currency":       map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
	}
	required := []string{"invoice_number", "date", "client_name", "type", "total_amount", "tax_amount", "currency"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// amounts travel as decimal strings after sanitizing; negatives and excess precision are
// rejected here with the same rule record edits use
func amountProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": common.AmountPattern,
	}
}

var invoiceSchema = remote.NewSchema(BuildInvoiceJSONSchema())
