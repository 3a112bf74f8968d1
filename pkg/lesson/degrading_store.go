package lesson

import (
	"context"
	stderrors "errors"
	"sync"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/logging"
)

// isStoreIOFailure reports whether err is a persistence I/O failure (as
// opposed to an ordinary not-found/validation error that durable and
// in-memory stores should both surface identically).
func isStoreIOFailure(err error) bool {
	var me *memverrors.Error
	if !stderrors.As(err, &me) {
		return false
	}
	return me.Code() == memverrors.LessonStoreIO
}

// DegradingStore wraps a persistent Store (JSONLStore or SQLiteStore) and,
// on the first I/O failure from any mutating call, permanently falls back to
// a pure in-memory store for the remainder of the process and logs a
// warning (spec 4.2: "On I/O failure, store reports a clear error; step
// loop degrades to in-memory store for the remainder of the session").
// Grounded on the teacher's agents.InMemoryStore as the fallback target.
type DegradingStore struct {
	mu        sync.Mutex
	durable   Store
	fallback  *MemoryStore
	degraded  bool
	logger    *logging.Logger
	sessionID string
}

// NewDegradingStore wraps durable with in-memory fallback. logger may be
// nil, in which case degradation is silent (still observable via Degraded).
func NewDegradingStore(durable Store, logger *logging.Logger, sessionID string) *DegradingStore {
	return &DegradingStore{
		durable:   durable,
		fallback:  NewMemoryStore(),
		logger:    logger,
		sessionID: sessionID,
	}
}

// Degraded reports whether this store has fallen back to in-memory-only.
func (s *DegradingStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *DegradingStore) active() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return s.fallback
	}
	return s.durable
}

func (s *DegradingStore) degrade(cause error) {
	s.mu.Lock()
	alreadyDegraded := s.degraded
	if !alreadyDegraded {
		s.degraded = true
	}
	s.mu.Unlock()

	if alreadyDegraded {
		return
	}
	if s.logger != nil {
		s.logger.Warn(context.Background(),
			"lesson store I/O failure, degrading to in-memory for session %s: %v", s.sessionID, cause)
	}
}

func (s *DegradingStore) Upsert(candidate Candidate) (string, error) {
	id, err := s.active().Upsert(candidate)
	if err != nil && isStoreIOFailure(err) && !s.Degraded() {
		s.degrade(err)
		return s.fallback.Upsert(candidate)
	}
	return id, err
}

func (s *DegradingStore) Get(id string) (*Lesson, error) {
	return s.active().Get(id)
}

func (s *DegradingStore) Iter(filter Filter) ([]*Lesson, error) {
	lessons, err := s.active().Iter(filter)
	if err != nil && isStoreIOFailure(err) && !s.Degraded() {
		s.degrade(err)
		return s.fallback.Iter(filter)
	}
	return lessons, err
}

func (s *DegradingStore) Transition(id string, newStatus Status, reason string) error {
	err := s.active().Transition(id, newStatus, reason)
	if err != nil && isStoreIOFailure(err) && !s.Degraded() {
		s.degrade(err)
		return s.fallback.Transition(id, newStatus, reason)
	}
	return err
}

func (s *DegradingStore) LinkConflict(aID, bID string) error {
	err := s.active().LinkConflict(aID, bID)
	if err != nil && isStoreIOFailure(err) && !s.Degraded() {
		s.degrade(err)
		return s.fallback.LinkConflict(aID, bID)
	}
	return err
}
