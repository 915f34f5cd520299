package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/pipeline"
)

var ErrSessionNotFound = common.NewAppError("SESSION_NOT_FOUND", "no such session", common.ErrNotFound)

type session struct {
	orch     *pipeline.Orchestrator
	lastUsed time.Time
}

// Sessions keeps one orchestrator per open document. Every orchestrator shares the Book
// it was built with, so recorded entries are visible across sessions.
type Sessions struct {
	newOrch func() *pipeline.Orchestrator
	now     func() time.Time

	mu   sync.Mutex
	byID map[uuid.UUID]*session
}

func NewSessions(newOrch func() *pipeline.Orchestrator) *Sessions {
	return &Sessions{newOrch: newOrch, now: time.Now, byID: map[uuid.UUID]*session{}}
}

// Open creates an orchestrator that is not yet registered. Call Add once it holds a document.
func (s *Sessions) Open() *pipeline.Orchestrator {
	return s.newOrch()
}

func (s *Sessions) Add(o *pipeline.Orchestrator) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.byID[id] = &session{orch: o, lastUsed: s.now()}
	s.mu.Unlock()
	return id
}

// Get returns the session's orchestrator and marks the session as used.
func (s *Sessions) Get(id uuid.UUID) (*pipeline.Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, common.WrapError(ErrSessionNotFound, id.String())
	}
	sess.lastUsed = s.now()
	return sess.orch, nil
}

// Close drops the session and abandons its document.
func (s *Sessions) Close(id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()
	if !ok {
		return common.WrapError(ErrSessionNotFound, id.String())
	}
	sess.orch.Close()
	return nil
}

// Sweep closes every session not used for at least idle and returns their ids.
// A non-positive idle keeps everything.
func (s *Sessions) Sweep(idle time.Duration) []uuid.UUID {
	if idle <= 0 {
		return nil
	}
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var (
		ids   []uuid.UUID
		stale []*pipeline.Orchestrator
	)
	for id, sess := range s.byID {
		if !sess.lastUsed.After(cutoff) {
			ids = append(ids, id)
			stale = append(stale, sess.orch)
			delete(s.byID, id)
		}
	}
	s.mu.Unlock()

	for _, o := range stale {
		o.Close()
	}
	return ids
}

// CloseAll is called on shutdown; in-flight calls are cancelled.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.byID
	s.byID = map[uuid.UUID]*session{}
	s.mu.Unlock()
	for _, sess := range all {
		sess.orch.Close()
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
