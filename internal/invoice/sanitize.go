package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ledger/constants"
)

var (
	reThousands = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

	dateLayouts = []string{
		time.DateOnly,
		"2006/01/02",
		"2006.01.02",
		"02.01.2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		time.RFC3339,
	}

	currencySymbols = map[string]string{
		"$": "USD",
		"€": "EUR",
		"£": "GBP",
		"¥": "JPY",
		"₹": "INR",
	}

	allowedKeys = map[string]struct{}{
		"invoice_number": {}, "date": {}, "client_name": {}, "type": {},
		"total_amount": {}, "tax_amount": {}, "currency": {},
	}
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (invoice_no -> invoice_number, vat -> tax_amount)
// - Coerces numeric money fields to decimal strings
// - Normalizes currency, date and type
// - Removes unknown keys (strict additionalProperties = false friendliness)
//
// It never invents values: a missing or null field stays missing and the schema rejects it.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: response is not a JSON object")
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms
	for _, k := range []string{"invoice_no", "invoiceNumber", "invoice_id", "number"} {
		renamed(k, "invoice_number")
	}
	for _, k := range []string{"invoice_date", "issue_date"} {
		renamed(k, "date")
	}
	for _, k := range []string{"client", "customer", "customer_name", "clientName"} {
		renamed(k, "client_name")
	}
	for _, k := range []string{"total", "amount", "totalAmount", "grand_total"} {
		renamed(k, "total_amount")
	}
	for _, k := range []string{"tax", "vat", "taxAmount", "vat_amount"} {
		renamed(k, "tax_amount")
	}
	for _, k := range []string{"currency_code", "currencyCode"} {
		renamed(k, "currency")
	}
	for _, k := range []string{"invoice_type", "category"} {
		renamed(k, "type")
	}

	// 2) nulls are missing values
	for k, v := range maps.Clone(m) {
		if v == nil {
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		}
	}

	// 3) money fields -> decimal strings
	for _, k := range []string{"total_amount", "tax_amount"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			m[k] = decimal.NewFromFloat(t).String()
		case string:
			m[k] = cleanAmount(t)
		default:
			// leave bools/objects in place; the schema reports the type error
		}
	}

	// 4) string fields
	if v, ok := m["invoice_number"].(float64); ok {
		m["invoice_number"] = decimal.NewFromFloat(v).String()
	}
	for _, k := range []string{"invoice_number", "client_name", "type", "date", "currency"} {
		if s, ok := m[k].(string); ok {
			m[k] = strings.TrimSpace(s)
		}
	}
	if s, ok := m["currency"].(string); ok {
		if code, ok := currencySymbols[s]; ok {
			s = code
		}
		m["currency"] = strings.ToUpper(s)
	}
	if s, ok := m["date"].(string); ok {
		m["date"] = normalizeDate(s)
	}
	if s, ok := m["type"].(string); ok && s != "" {
		if t, ok := constants.Canonicalize(s); ok {
			m["type"] = string(t)
		}
	}

	// 5) remove unknown keys
	for k := range maps.Clone(m) {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("invoice.parse.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// cleanAmount strips currency symbols and thousands separators. Unparseable input is returned trimmed.
func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	for sym, code := range currencySymbols {
		s = strings.TrimPrefix(s, sym)
		s = strings.TrimSuffix(s, code)
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if reThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d.String()
	}
	return s
}

func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}
