// Package ledger owns the lifecycle of accounting lines from draft to sealed and shared.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/fingerprint"
)

// Entry is one accounting line. Fields are mutated only through the transition methods.
type Entry struct {
	ID           uuid.UUID                `json:"id"`
	Status       constants.LedgerStatus   `json:"status"`
	Record       *entity.AccountingRecord `json:"record,omitempty"`
	Fingerprint  string                   `json:"fingerprint"`
	Score        *entity.CredibilityScore `json:"score,omitempty"`
	Approved     bool                     `json:"approved"`
	Attestation  string                   `json:"attestation,omitempty"`
	CorrectsID   *uuid.UUID               `json:"corrects_id,omitempty"`
	DocumentID   string                   `json:"document_id,omitempty"`
	DocumentName string                   `json:"document_name,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	SealedAt     *time.Time               `json:"sealed_at,omitempty"`
	SharedAt     *time.Time               `json:"shared_at,omitempty"`
}

// NewEntry starts a Draft line for the given document.
func NewEntry(documentID, documentName string, now time.Time) *Entry {
	return &Entry{
		ID:           uuid.New(),
		Status:       constants.LedgerStatusDraft,
		Fingerprint:  fingerprint.Pending,
		DocumentID:   documentID,
		DocumentName: documentName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (e *Entry) frozenErr(op string) error {
	return common.WrapError(common.ErrFrozen, op+": entry is "+string(e.Status))
}

// ApplyParsed stores a freshly extracted record. Any score and approval are dropped.
func (e *Entry) ApplyParsed(rec entity.AccountingRecord, fp string, now time.Time) error {
	if e.Status.Frozen() {
		return e.frozenErr("parse")
	}
	r := rec
	e.Record = &r
	e.Fingerprint = fp
	e.Score = nil
	e.Approved = false
	e.Status = constants.LedgerStatusParsed
	e.UpdatedAt = now
	return nil
}

// ApplyScore attaches a credibility score.
func (e *Entry) ApplyScore(score entity.CredibilityScore, now time.Time) error {
	switch e.Status {
	case constants.LedgerStatusParsed, constants.LedgerStatusScored:
	case constants.LedgerStatusSealed, constants.LedgerStatusShared:
		return e.frozenErr("score")
	default:
		return common.InvariantErrorf("score: entry is %s, nothing to score", e.Status)
	}
	if e.Record == nil {
		return common.ErrNoRecord
	}
	if score.Value < 0 || score.Value > 100 {
		return common.InvariantErrorf("score: %v outside [0,100]", score.Value)
	}
	s := score
	e.Score = &s
	e.Approved = false
	e.Status = constants.LedgerStatusScored
	e.UpdatedAt = now
	return nil
}

// ApplyEdit replaces the record with a user-corrected one. The score no longer
// reflects the data, so it is cleared and the entry drops back to Parsed.
func (e *Entry) ApplyEdit(rec entity.AccountingRecord, fp string, now time.Time) error {
	switch e.Status {
	case constants.LedgerStatusParsed, constants.LedgerStatusScored:
	case constants.LedgerStatusSealed, constants.LedgerStatusShared:
		return e.frozenErr("edit")
	default:
		return common.InvariantErrorf("edit: entry is %s, nothing to edit", e.Status)
	}
	r := rec
	e.Record = &r
	e.Fingerprint = fp
	e.Score = nil
	e.Approved = false
	e.Status = constants.LedgerStatusParsed
	e.UpdatedAt = now
	return nil
}

// InvalidateScore clears a stale score, e.g. after the source text changed.
func (e *Entry) InvalidateScore(now time.Time) error {
	switch e.Status {
	case constants.LedgerStatusDraft:
		return nil
	case constants.LedgerStatusSealed, constants.LedgerStatusShared:
		return e.frozenErr("invalidate score")
	}
	if e.Score == nil && e.Status == constants.LedgerStatusParsed {
		return nil
	}
	e.Score = nil
	e.Approved = false
	e.Status = constants.LedgerStatusParsed
	e.UpdatedAt = now
	return nil
}

// Approve records the user's confirmation that the scored line may be sealed.
func (e *Entry) Approve(now time.Time) error {
	if e.Status.Frozen() {
		return e.frozenErr("approve")
	}
	if e.Status != constants.LedgerStatusScored || e.Score == nil {
		return common.WrapError(common.ErrScoreMissing, "approve")
	}
	if e.Approved {
		return nil
	}
	e.Approved = true
	e.UpdatedAt = now
	return nil
}

// Seal freezes the entry under the given attestation token. Sealing again with the
// same token is a no-op.
func (e *Entry) Seal(token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if e.Status.Frozen() {
		if token != "" && token == e.Attestation {
			return nil
		}
		return common.InvariantErrorf("seal: entry already sealed under a different attestation")
	}
	if e.Status != constants.LedgerStatusScored || e.Score == nil {
		return common.WrapError(common.ErrScoreMissing, "seal")
	}
	if !e.Approved {
		return common.WrapError(common.ErrNotApproved, "seal")
	}
	if token == "" {
		return common.InputErrorf("seal: attestation token is required")
	}
	t := now
	e.Attestation = token
	e.SealedAt = &t
	e.Status = constants.LedgerStatusSealed
	e.UpdatedAt = now
	return nil
}

// Share hands a sealed entry to the auditor. Sharing twice is a no-op.
func (e *Entry) Share(now time.Time) error {
	switch e.Status {
	case constants.LedgerStatusShared:
		return nil
	case constants.LedgerStatusSealed:
	default:
		return common.InvariantErrorf("share: entry is %s, must be sealed first", e.Status)
	}
	t := now
	e.SharedAt = &t
	e.Status = constants.LedgerStatusShared
	e.UpdatedAt = now
	return nil
}

// CheckDeletable reports whether the user may delete the line.
func (e *Entry) CheckDeletable() error {
	if e.Status.Frozen() {
		return common.WrapError(common.ErrNotDeletable, "delete: entry is "+string(e.Status))
	}
	return nil
}

// Correct opens a new Parsed entry that carries the sealed record forward and
// references the sealed entry. The receiver is left untouched.
func (e *Entry) Correct(now time.Time) (*Entry, error) {
	if !e.Status.Frozen() {
		return nil, common.InvariantErrorf("correct: entry is %s, only sealed entries take corrections", e.Status)
	}
	if e.Record == nil {
		return nil, common.InvariantErrorf("correct: sealed entry has no record")
	}
	ref := e.ID
	rec := *e.Record
	c := NewEntry(e.DocumentID, e.DocumentName, now)
	c.Record = &rec
	c.Fingerprint = e.Fingerprint
	c.CorrectsID = &ref
	c.Status = constants.LedgerStatusParsed
	return c, nil
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Record != nil {
		r := *e.Record
		c.Record = &r
	}
	if e.Score != nil {
		s := *e.Score
		c.Score = &s
	}
	if e.CorrectsID != nil {
		id := *e.CorrectsID
		c.CorrectsID = &id
	}
	if e.SealedAt != nil {
		t := *e.SealedAt
		c.SealedAt = &t
	}
	if e.SharedAt != nil {
		t := *e.SharedAt
		c.SharedAt = &t
	}
	return &c
}
