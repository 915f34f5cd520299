package pipeline

import (
	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/entity"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
)

// Snapshot is a consistent copy of the orchestrator state. It shares nothing with the
// live state.
type Snapshot struct {
	Generation uint64                 `json:"generation"`
	Document   *entity.DocumentInfo   `json:"document,omitempty"`
	Text       entity.ExtractedText   `json:"text"`
	Entry      *ledger.Entry          `json:"entry,omitempty"`
	Status     constants.LedgerStatus `json:"status"`
	InFlight   string                 `json:"in_flight,omitempty"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		Generation: o.gen,
		Text:       o.text.Clone(),
		Entry:      o.entry.Clone(),
		Status:     statusOf(o.entry),
	}
	if o.doc != nil {
		info := o.doc.Info()
		s.Document = &info
	}
	if o.inflight != nil {
		s.InFlight = o.inflight.op
	}
	return s
}
