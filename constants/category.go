package constants

import (
	"strings"
)

// InvoiceType is the canonical "type" of an accounting record.
type InvoiceType string

const (
	Sales        InvoiceType = "Sales"
	Purchase     InvoiceType = "Purchase"
	Services     InvoiceType = "Services"
	Goods        InvoiceType = "Goods"
	Subscription InvoiceType = "Subscription"
	Travel       InvoiceType = "Travel"
	Utilities    InvoiceType = "Utilities"
	CreditNote   InvoiceType = "CreditNote"
	Other        InvoiceType = "Other"
)

var allInvoiceTypes = []InvoiceType{
	Sales,
	Purchase,
	Services,
	Goods,
	Subscription,
	Travel,
	Utilities,
	CreditNote,
	Other,
}

// Canonicalize maps free-form type text to a known InvoiceType.
// The bool is false when nothing matched and the input was kept verbatim by the caller.
func Canonicalize(input string) (InvoiceType, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]InvoiceType{
		"sale":           Sales,
		"sales invoice":  Sales,
		"outgoing":       Sales,
		"purchase order": Purchase,
		"bill":           Purchase,
		"incoming":       Purchase,
		"service":        Services,
		"consulting":     Services,
		"product":        Goods,
		"products":       Goods,
		"saas":           Subscription,
		"license":        Subscription,
		"hotel":          Travel,
		"airline":        Travel,
		"electricity":    Utilities,
		"credit note":    CreditNote,
		"refund":         CreditNote,
	}

	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allInvoiceTypes {
		if normalized == strings.ToLower(string(t)) {
			return t, true
		}
	}

	return Other, false
}
