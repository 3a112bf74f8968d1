package lesson

import (
	"sort"
	"sync"
	"time"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/google/uuid"
)

// Store is the Lesson Store contract: upsert-with-dedup, point lookup,
// filtered iteration, lifecycle transition, and symmetric conflict linking.
type Store interface {
	Upsert(candidate Candidate) (string, error)
	Get(id string) (*Lesson, error)
	Iter(filter Filter) ([]*Lesson, error)
	Transition(id string, newStatus Status, reason string) error
	LinkConflict(aID, bID string) error
}

// Clock is overridable for deterministic tests.
type Clock func() time.Time

// MemoryStore is the reference in-process implementation: all of the dedup/
// conflict/lifecycle logic lives here, and the JSONL and SQLite backends
// are thin persistence wrappers around it (load on Open, persist on every
// mutating call).
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Lesson
	now     Clock
	onWrite func(*Lesson) // persistence hook; nil for pure in-memory use
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Lesson),
		now:  time.Now,
	}
}

// Load replaces the store's contents with the given lessons, keyed by ID.
// Used by persistence backends to hydrate from disk.
func (s *MemoryStore) Load(lessons []*Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Lesson, len(lessons))
	for _, l := range lessons {
		s.byID[l.ID] = l
	}
}

// Snapshot returns every lesson currently held, in stable ID order.
func (s *MemoryStore) Snapshot() []*Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Lesson, 0, len(s.byID))
	for _, l := range s.byID {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upsert implements the dedup rule (4.2): same trigger set and rule-text
// Jaccard >= 0.65 merges into the existing lesson, reusing its ID.
func (s *MemoryStore) Upsert(candidate Candidate) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	for _, existing := range s.byID {
		if isDuplicate(existing, candidate) {
			// Counters only change via Promoter activations, not here.
			existing.UpdatedAt = now
			if candidateReliabilityProxy(candidate) > existing.Reliability() {
				existing.RuleText = normalizeRuleText(candidate.RuleText)
			}
			existing.TriggerFingerprints = mergeFingerprints(existing.TriggerFingerprints, candidate.TriggerFingerprints)
			existing.Tags = mergeTags(existing.Tags, candidate.Tags)
			s.persist(existing)
			return existing.ID, nil
		}
	}

	l := &Lesson{
		ID:                  uuid.New().String(),
		Status:              StatusCandidate,
		RuleText:            normalizeRuleText(candidate.RuleText),
		TriggerFingerprints: sortedCopy(candidate.TriggerFingerprints),
		Tags:                candidate.Tags,
		DomainKey:           candidate.DomainKey,
		TaskCluster:         candidate.TaskCluster,
		SourceSessionID:     candidate.SourceSessionID,
		PromotionBlocked:    candidate.PromotionBlocked,
		CreatedAt:           now,
		UpdatedAt:           now,
		SchemaVersion:       CurrentSchemaVersion,
	}
	s.byID[l.ID] = l
	s.linkConflictsLocked(l)
	s.persist(l)
	return l.ID, nil
}

// candidateReliabilityProxy treats a fresh candidate as reliability 0.5
// (the Laplace-smoothed prior with zero counts), used only to decide which
// rule text to keep on merge.
func candidateReliabilityProxy(Candidate) float64 { return 0.5 }

func mergeFingerprints(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, f := range a {
		seen[f] = true
	}
	for _, f := range b {
		if !seen[f] {
			out = append(out, f)
			seen[f] = true
		}
	}
	return sortedCopy(out)
}

func mergeTags(a, b Tags) Tags {
	return Tags{
		System: mergeFingerprints(a.System, b.System),
		Model:  mergeFingerprints(a.Model, b.Model),
	}
}

// linkConflictsLocked scans for conflicts between the new lesson and every
// existing one; caller must hold s.mu.
func (s *MemoryStore) linkConflictsLocked(l *Lesson) {
	for _, other := range s.byID {
		if other.ID == l.ID {
			continue
		}
		if isConflict(l, other) {
			addConflictRef(l, other.ID)
			addConflictRef(other, l.ID)
			s.persist(other)
		}
	}
}

func addConflictRef(l *Lesson, id string) {
	for _, c := range l.ConflictsWith {
		if c == id {
			return
		}
	}
	l.ConflictsWith = append(l.ConflictsWith, id)
}

// Get returns a copy of the lesson with the given ID.
func (s *MemoryStore) Get(id string) (*Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[id]
	if !ok {
		return nil, memverrors.WithFields(
			memverrors.New(memverrors.ResourceNotFound, "lesson not found"),
			memverrors.Fields{"id": id},
		)
	}
	cp := *l
	return &cp, nil
}

// Iter returns every lesson matching filter, in stable ID order.
func (s *MemoryStore) Iter(filter Filter) ([]*Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Lesson
	for _, l := range s.byID {
		if filter.matches(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Transition records a lifecycle change; no-op once the lesson is archived,
// the only terminal status (a suppressed lesson can still transition).
func (s *MemoryStore) Transition(id string, newStatus Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byID[id]
	if !ok {
		return memverrors.WithFields(
			memverrors.New(memverrors.ResourceNotFound, "lesson not found"),
			memverrors.Fields{"id": id},
		)
	}

	if l.Status == StatusArchived {
		return nil
	}

	l.Status = newStatus
	l.UpdatedAt = s.now()
	s.persist(l)
	return nil
}

// LinkConflict symmetrically links two lessons as conflicting.
func (s *MemoryStore) LinkConflict(aID, bID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[aID]
	if !ok {
		return memverrors.WithFields(memverrors.New(memverrors.ResourceNotFound, "lesson not found"), memverrors.Fields{"id": aID})
	}
	b, ok := s.byID[bID]
	if !ok {
		return memverrors.WithFields(memverrors.New(memverrors.ResourceNotFound, "lesson not found"), memverrors.Fields{"id": bID})
	}

	addConflictRef(a, bID)
	addConflictRef(b, aID)
	s.persist(a)
	s.persist(b)
	return nil
}

func (s *MemoryStore) persist(l *Lesson) {
	if s.onWrite != nil {
		s.onWrite(l)
	}
}
