package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Message, fmt.Sprint(e.Value))
}

// ValidationRule checks a single value; nil means it passed.
type ValidationRule func(field string, value any) *FieldError

// Validator collects field failures so a caller can report all of them at once.
type Validator struct {
	errs []FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules in order and keeps every failure.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if fe := rule(field, value); fe != nil {
			v.errs = append(v.errs, *fe)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

func (v *Validator) Errors() []FieldError { return v.errs }

// FirstFor returns the first failure recorded for field, or nil.
func (v *Validator) FirstFor(field string) *FieldError {
	for i := range v.errs {
		if v.errs[i].Field == field {
			return &v.errs[i]
		}
	}
	return nil
}

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return errors.New(v.ErrorMessage())
}

// ValidateAndReturnError turns collected failures into an InputError.
func ValidateAndReturnError(v *Validator) error {
	if !v.HasErrors() {
		return nil
	}
	return InputErrorf("%s", v.ErrorMessage())
}

// stringRule fails non-strings and strings for which ok is false.
func stringRule(msg string, ok func(string) bool) ValidationRule {
	return func(field string, value any) *FieldError {
		s, isString := value.(string)
		if !isString {
			return &FieldError{Field: field, Value: value, Message: "must be text"}
		}
		if !ok(s) {
			return &FieldError{Field: field, Value: s, Message: msg}
		}
		return nil
	}
}

// Required rejects nil, blank strings and empty byte slices.
func Required(field string, value any) *FieldError {
	missing := false
	switch v := value.(type) {
	case nil:
		missing = true
	case string:
		missing = strings.TrimSpace(v) == ""
	case *string:
		missing = v == nil || strings.TrimSpace(*v) == ""
	case []byte:
		missing = len(v) == 0
	}
	if missing {
		return &FieldError{Field: field, Value: "", Message: "is required"}
	}
	return nil
}

// MaxLength counts runes, not bytes. Non-strings pass.
func MaxLength(max int) ValidationRule {
	return func(field string, value any) *FieldError {
		s, ok := value.(string)
		if !ok || utf8.RuneCountInString(s) <= max {
			return nil
		}
		return &FieldError{Field: field, Value: s, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
}

var UUID = stringRule("must be a UUID", func(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
})

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// CurrencyCode wants three upper-case letters (ISO 4217 shape, not a registry lookup).
var CurrencyCode = stringRule("must be 3 upper-case letters", currencyRe.MatchString)

var ISODate = stringRule("must be a YYYY-MM-DD date", func(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
})

// AmountPattern is the shape of a money amount everywhere it is checked: non-negative
// with at most MaxAmountDecimals decimal places.
const (
	MaxAmountDecimals = 4
	AmountPattern     = `^\d+(\.\d{1,4})?$`
)

var amountRe = regexp.MustCompile(AmountPattern)

// NonNegativeDecimal checks a decimal.Decimal against AmountPattern. Trailing zeros do
// not count as decimal places.
func NonNegativeDecimal(field string, value any) *FieldError {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return &FieldError{Field: field, Value: value, Message: "must be a decimal amount"}
	}
	if d.IsNegative() {
		return &FieldError{Field: field, Value: d.String(), Message: "must not be negative"}
	}
	if !amountRe.MatchString(d.String()) {
		return &FieldError{Field: field, Value: d.String(), Message: fmt.Sprintf("must have at most %d decimal places", MaxAmountDecimals)}
	}
	return nil
}
