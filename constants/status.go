package constants

// LedgerStatus is the lifecycle status of a ledger entry.
type LedgerStatus string

// Stable values (store these exact strings in DB).
const (
	LedgerStatusDraft  LedgerStatus = "DRAFT"  // created on upload, nothing parsed yet
	LedgerStatusParsed LedgerStatus = "PARSED" // accounting record present
	LedgerStatusScored LedgerStatus = "SCORED" // credibility score present
	LedgerStatusSealed LedgerStatus = "SEALED" // attested, fields frozen
	LedgerStatusShared LedgerStatus = "SHARED" // sealed and shared with the auditor
)

var statusRank = map[LedgerStatus]int{
	LedgerStatusDraft:  0,
	LedgerStatusParsed: 1,
	LedgerStatusScored: 2,
	LedgerStatusSealed: 3,
	LedgerStatusShared: 4,
}

// Rank orders statuses along the lifecycle. Unknown values rank -1.
func (s LedgerStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Frozen reports whether entries in this status may no longer change.
func (s LedgerStatus) Frozen() bool {
	return s == LedgerStatusSealed || s == LedgerStatusShared
}

func (s LedgerStatus) Valid() bool {
	return s.Rank() >= 0
}

// ParseLedgerStatus maps a stored string back to a status.
func ParseLedgerStatus(s string) (LedgerStatus, bool) {
	st := LedgerStatus(s)
	return st, st.Valid()
}
