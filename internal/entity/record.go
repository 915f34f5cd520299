package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
)

// Field names one editable column of an AccountingRecord. Values match the wire keys.
type Field string

const (
	FieldInvoiceNumber Field = "invoice_number"
	FieldDate          Field = "date"
	FieldClientName    Field = "client_name"
	FieldType          Field = "type"
	FieldTotalAmount   Field = "total_amount"
	FieldTaxAmount     Field = "tax_amount"
	FieldCurrency      Field = "currency"
)

// AllFields lists the record fields in display order.
var AllFields = []Field{
	FieldInvoiceNumber,
	FieldDate,
	FieldClientName,
	FieldType,
	FieldTotalAmount,
	FieldTaxAmount,
	FieldCurrency,
}

func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFields {
		if f == known {
			return f, nil
		}
	}
	return "", common.InputErrorf("unknown record field %q", s)
}

// AccountingRecord is the structured result of field extraction.
type AccountingRecord struct {
	InvoiceNumber string
	Date          string // YYYY-MM-DD
	ClientName    string
	Type          string
	TotalAmount   decimal.Decimal
	TaxAmount     decimal.Decimal
	Currency      string // ISO 4217
}

const (
	maxInvoiceNumberLen = 64
	maxTextLen          = 256
)

// Validate checks every field and collects all failures.
func (r AccountingRecord) Validate() *common.Validator {
	return common.NewValidator().
		Field(string(FieldInvoiceNumber), r.InvoiceNumber, common.Required, common.MaxLength(maxInvoiceNumberLen)).
		Field(string(FieldDate), r.Date, common.Required, common.ISODate).
		Field(string(FieldClientName), r.ClientName, common.Required, common.MaxLength(maxTextLen)).
		Field(string(FieldType), r.Type, common.Required, common.MaxLength(maxTextLen)).
		Field(string(FieldTotalAmount), r.TotalAmount, common.NonNegativeDecimal).
		Field(string(FieldTaxAmount), r.TaxAmount, common.NonNegativeDecimal).
		Field(string(FieldCurrency), r.Currency, common.CurrencyCode)
}

// Get returns the display value of one field.
func (r AccountingRecord) Get(f Field) string {
	switch f {
	case FieldInvoiceNumber:
		return r.InvoiceNumber
	case FieldDate:
		return r.Date
	case FieldClientName:
		return r.ClientName
	case FieldType:
		return r.Type
	case FieldTotalAmount:
		return r.TotalAmount.String()
	case FieldTaxAmount:
		return r.TaxAmount.String()
	case FieldCurrency:
		return r.Currency
	default:
		return ""
	}
}

// Set overrides one field from user input. On error r is unchanged.
func (r *AccountingRecord) Set(f Field, value string) error {
	value = strings.TrimSpace(value)
	next := *r
	switch f {
	case FieldInvoiceNumber:
		next.InvoiceNumber = value
	case FieldDate:
		next.Date = value
	case FieldClientName:
		next.ClientName = value
	case FieldType:
		if t, ok := constants.Canonicalize(value); ok {
			value = string(t)
		}
		next.Type = value
	case FieldTotalAmount, FieldTaxAmount:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return common.InputErrorf("%s: %q is not a number", f, value)
		}
		if f == FieldTotalAmount {
			next.TotalAmount = d
		} else {
			next.TaxAmount = d
		}
	case FieldCurrency:
		next.Currency = strings.ToUpper(value)
	default:
		return common.InputErrorf("unknown record field %q", f)
	}

	if fe := next.Validate().FirstFor(string(f)); fe != nil {
		return common.InputErrorf("%s", fe.Error())
	}
	*r = next
	return nil
}

// Equal compares records field by field, amounts numerically.
func (r AccountingRecord) Equal(o AccountingRecord) bool {
	return r.InvoiceNumber == o.InvoiceNumber &&
		r.Date == o.Date &&
		r.ClientName == o.ClientName &&
		r.Type == o.Type &&
		r.TotalAmount.Equal(o.TotalAmount) &&
		r.TaxAmount.Equal(o.TaxAmount) &&
		r.Currency == o.Currency
}

// recordJSON is the wire shape shared with the invoice and credibility services.
type recordJSON struct {
	InvoiceNumber string      `json:"invoice_number"`
	Date          string      `json:"date"`
	ClientName    string      `json:"client_name"`
	Type          string      `json:"type"`
	TotalAmount   json.Number `json:"total_amount"`
	TaxAmount     json.Number `json:"tax_amount"`
	Currency      string      `json:"currency"`
}

// MarshalJSON writes amounts as JSON numbers.
func (r AccountingRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		InvoiceNumber: r.InvoiceNumber,
		Date:          r.Date,
		ClientName:    r.ClientName,
		Type:          r.Type,
		TotalAmount:   json.Number(r.TotalAmount.String()),
		TaxAmount:     json.Number(r.TaxAmount.String()),
		Currency:      r.Currency,
	})
}

// UnmarshalJSON accepts amounts as numbers or numeric strings.
func (r *AccountingRecord) UnmarshalJSON(b []byte) error {
	var w struct {
		InvoiceNumber string          `json:"invoice_number"`
		Date          string          `json:"date"`
		ClientName    string          `json:"client_name"`
		Type          string          `json:"type"`
		TotalAmount   decimal.Decimal `json:"total_amount"`
		TaxAmount     decimal.Decimal `json:"tax_amount"`
		Currency      string          `json:"currency"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = AccountingRecord{
		InvoiceNumber: w.InvoiceNumber,
		Date:          w.Date,
		ClientName:    w.ClientName,
		Type:          w.Type,
		TotalAmount:   w.TotalAmount,
		TaxAmount:     w.TaxAmount,
		Currency:      w.Currency,
	}
	return nil
}

// CredibilityScore is a confidence in [0,100] that a record matches its source text.
type CredibilityScore struct {
	Value    float64   `json:"value"`
	ScoredAt time.Time `json:"scored_at"`
}
