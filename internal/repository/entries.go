package repository

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// entryRow is the flattened ledger_entries row shared by both dialects.
type entryRow struct {
	ID            string
	Status        string
	Fingerprint   string
	InvoiceNumber *string
	InvoiceDate   *string
	ClientName    *string
	InvoiceType   *string
	TotalAmount   *string
	TaxAmount     *string
	Currency      *string
	Score         *float64
	ScoredAt      dbTime
	Approved      bool
	Attestation   string
	CorrectsID    *string
	DocumentID    string
	DocumentName  string
	CreatedAt     dbTime
	UpdatedAt     dbTime
	SealedAt      dbTime
	SharedAt      dbTime
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (*ledger.Entry, error) {
	var r entryRow
	if err := s.Scan(
		&r.ID, &r.Status, &r.Fingerprint,
		&r.InvoiceNumber, &r.InvoiceDate, &r.ClientName, &r.InvoiceType,
		&r.TotalAmount, &r.TaxAmount, &r.Currency,
		&r.Score, &r.ScoredAt, &r.Approved, &r.Attestation, &r.CorrectsID,
		&r.DocumentID, &r.DocumentName,
		&r.CreatedAt, &r.UpdatedAt, &r.SealedAt, &r.SharedAt,
	); err != nil {
		return nil, err
	}
	return r.toEntry()
}

func (r entryRow) toEntry() (*ledger.Entry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("entry id %q: %w", r.ID, err)
	}
	status, ok := constants.ParseLedgerStatus(r.Status)
	if !ok {
		return nil, fmt.Errorf("entry %s: unknown status %q", r.ID, r.Status)
	}
	e := &ledger.Entry{
		ID:           id,
		Status:       status,
		Fingerprint:  r.Fingerprint,
		Approved:     r.Approved,
		Attestation:  r.Attestation,
		DocumentID:   r.DocumentID,
		DocumentName: r.DocumentName,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		SealedAt:     r.SealedAt.ptr(),
		SharedAt:     r.SharedAt.ptr(),
	}
	if r.InvoiceNumber != nil {
		rec := entity.AccountingRecord{
			InvoiceNumber: deref(r.InvoiceNumber),
			Date:          deref(r.InvoiceDate),
			ClientName:    deref(r.ClientName),
			Type:          deref(r.InvoiceType),
			Currency:      deref(r.Currency),
		}
		if rec.TotalAmount, err = parseAmount(r.TotalAmount); err != nil {
			return nil, fmt.Errorf("entry %s total_amount: %w", r.ID, err)
		}
		if rec.TaxAmount, err = parseAmount(r.TaxAmount); err != nil {
			return nil, fmt.Errorf("entry %s tax_amount: %w", r.ID, err)
		}
		e.Record = &rec
	}
	if r.Score != nil {
		e.Score = &entity.CredibilityScore{Value: *r.Score, ScoredAt: r.ScoredAt.Time}
	}
	if r.CorrectsID != nil {
		ref, err := uuid.Parse(*r.CorrectsID)
		if err != nil {
			return nil, fmt.Errorf("entry %s corrects_id: %w", r.ID, err)
		}
		e.CorrectsID = &ref
	}
	return e, nil
}

// entryArgs lists the column values of e in entryColumns order. ts formats timestamps for
// the target dialect.
func entryArgs(e *ledger.Entry, ts func(*time.Time) any) []any {
	var (
		invoiceNumber, date, client, typ, total, tax, currency *string
		score                                                  *float64
		scoredAt                                               *time.Time
		correctsID                                             *string
	)
	if e.Record != nil {
		r := e.Record
		invoiceNumber, date, client, typ = &r.InvoiceNumber, &r.Date, &r.ClientName, &r.Type
		t, x := r.TotalAmount.String(), r.TaxAmount.String()
		total, tax = &t, &x
		currency = &r.Currency
	}
	if e.Score != nil {
		v, at := e.Score.Value, e.Score.ScoredAt
		score, scoredAt = &v, &at
	}
	if e.CorrectsID != nil {
		s := e.CorrectsID.String()
		correctsID = &s
	}
	created, updated := e.CreatedAt, e.UpdatedAt
	return []any{
		e.ID.String(), string(e.Status), e.Fingerprint,
		invoiceNumber, date, client, typ,
		total, tax, currency,
		score, ts(scoredAt), e.Approved, e.Attestation, correctsID,
		e.DocumentID, e.DocumentName,
		ts(&created), ts(&updated), ts(e.SealedAt), ts(e.SharedAt),
	}
}

const entryColumns = `id, status, fingerprint,
	invoice_number, invoice_date, client_name, invoice_type,
	total_amount, tax_amount, currency,
	score, scored_at, approved, attestation, corrects_id,
	document_id, document_name,
	created_at, updated_at, sealed_at, shared_at`

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseAmount(s *string) (decimal.Decimal, error) {
	if s == nil || *s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*s)
}

// dbTime scans timestamps stored natively (Postgres) or as RFC 3339 text (SQLite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case *time.Time:
		if v == nil {
			*t = dbTime{}
			return nil
		}
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("dbTime: cannot scan %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	if s == "" {
		*t = dbTime{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("dbTime: %w", err)
	}
	*t = dbTime{Time: parsed.UTC(), Valid: true}
	return nil
}

func (t dbTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time, nil
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
