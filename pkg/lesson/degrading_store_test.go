package lesson

import (
	"testing"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore always returns a LessonStoreIO error, simulating a durable
// backend whose disk has gone away.
type failingStore struct{}

func (failingStore) Upsert(Candidate) (string, error) {
	return "", memverrors.New(memverrors.LessonStoreIO, "disk full")
}
func (failingStore) Get(string) (*Lesson, error) { return nil, memverrors.New(memverrors.ResourceNotFound, "not found") }
func (failingStore) Iter(Filter) ([]*Lesson, error) {
	return nil, memverrors.New(memverrors.LessonStoreIO, "disk full")
}
func (failingStore) Transition(string, Status, string) error {
	return memverrors.New(memverrors.LessonStoreIO, "disk full")
}
func (failingStore) LinkConflict(string, string) error {
	return memverrors.New(memverrors.LessonStoreIO, "disk full")
}

func TestDegradingStoreFallsBackOnIOFailure(t *testing.T) {
	s := NewDegradingStore(failingStore{}, nil, "sess-1")
	assert.False(t, s.Degraded())

	id, err := s.Upsert(Candidate{RuleText: "rule", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err, "fallback upsert should succeed even though the durable store failed")
	assert.True(t, s.Degraded())

	l, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
}

func TestDegradingStoreStaysDegradedAfterFirstFailure(t *testing.T) {
	s := NewDegradingStore(failingStore{}, nil, "sess-1")
	_, _ = s.Upsert(Candidate{RuleText: "rule", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.True(t, s.Degraded())

	_, err := s.Upsert(Candidate{RuleText: "another rule entirely", TriggerFingerprints: []string{"b"}, DomainKey: "d"})
	assert.NoError(t, err, "once degraded, subsequent calls go straight to the in-memory fallback")
}

func TestDegradingStoreDoesNotDegradeOnOrdinaryNotFound(t *testing.T) {
	mem := NewMemoryStore()
	s := NewDegradingStore(mem, nil, "sess-1")

	_, err := s.Get("missing")
	assert.Error(t, err)
	assert.False(t, s.Degraded(), "a plain not-found error must not trigger degradation")
}
