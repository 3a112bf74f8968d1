package lesson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	return s
}

func TestUpsertCreatesNewLessonWithCandidateStatus(t *testing.T) {
	s := newTestStore()
	id, err := s.Upsert(Candidate{
		RuleText:            "quote shell arguments containing spaces",
		TriggerFingerprints: []string{"shell:path_quote"},
		DomainKey:           "shell-ops",
		SourceSessionID:     "sess-1",
	})
	require.NoError(t, err)

	l, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCandidate, l.Status)
	assert.Equal(t, CurrentSchemaVersion, l.SchemaVersion)
	assert.True(t, l.Status.Retrievable())
}

func TestUpsertMergesDuplicateIntoExistingID(t *testing.T) {
	s := newTestStore()
	first := Candidate{
		RuleText:            "quote shell arguments containing spaces",
		TriggerFingerprints: []string{"shell:path_quote"},
		DomainKey:           "shell-ops",
	}
	id1, err := s.Upsert(first)
	require.NoError(t, err)

	second := Candidate{
		RuleText:            "quote shell arguments that contain spaces",
		TriggerFingerprints: []string{"shell:path_quote"},
		DomainKey:           "shell-ops",
	}
	id2, err := s.Upsert(second)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "duplicate candidates must merge into the same lesson id, never create a second")

	all, err := s.Iter(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "no duplicate pairs should exist in the store")
}

func TestUpsertLinksConflictingLessonsSymmetrically(t *testing.T) {
	s := newTestStore()
	aID, err := s.Upsert(Candidate{
		RuleText:            "always sort results ascending",
		TriggerFingerprints: []string{"sql:sort_direction"},
		DomainKey:           "reporting",
	})
	require.NoError(t, err)

	bID, err := s.Upsert(Candidate{
		RuleText:            "never rely on implicit ordering from the database",
		TriggerFingerprints: []string{"sql:sort_direction"},
		DomainKey:           "reporting",
	})
	require.NoError(t, err)

	a, err := s.Get(aID)
	require.NoError(t, err)
	b, err := s.Get(bID)
	require.NoError(t, err)

	assert.Contains(t, a.ConflictsWith, bID)
	assert.Contains(t, b.ConflictsWith, aID)
}

func TestIterRetrievableOnlyExcludesSuppressedAndArchived(t *testing.T) {
	s := newTestStore()
	candidateID, err := s.Upsert(Candidate{RuleText: "rule one", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err)
	suppressedID, err := s.Upsert(Candidate{RuleText: "rule two is different enough", TriggerFingerprints: []string{"b"}, DomainKey: "d"})
	require.NoError(t, err)
	require.NoError(t, s.Transition(suppressedID, StatusSuppressed, "poisoned lesson"))

	archivedID, err := s.Upsert(Candidate{RuleText: "rule three has its own shape", TriggerFingerprints: []string{"c"}, DomainKey: "d"})
	require.NoError(t, err)
	require.NoError(t, s.Transition(archivedID, StatusArchived, "idle too long"))

	retrievable, err := s.Iter(Filter{RetrievableOnly: true})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, l := range retrievable {
		ids[l.ID] = true
	}
	assert.True(t, ids[candidateID])
	assert.False(t, ids[suppressedID], "suppressed lessons must never be retrievable")
	assert.False(t, ids[archivedID], "archived lessons must never be retrievable")
}

func TestTransitionIsNoOpOnceArchived(t *testing.T) {
	s := newTestStore()
	id, err := s.Upsert(Candidate{RuleText: "rule", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err)
	require.NoError(t, s.Transition(id, StatusArchived, "idle"))

	require.NoError(t, s.Transition(id, StatusPromoted, "should not apply"))

	l, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, l.Status, "archived is terminal; no further transition may apply")
}

func TestTransitionUnknownIDReturnsNotFound(t *testing.T) {
	s := newTestStore()
	err := s.Transition("missing", StatusPromoted, "x")
	assert.Error(t, err)
}

func TestReliabilityIsLaplaceSmoothed(t *testing.T) {
	l := &Lesson{HelpfulCount: 0, HarmfulCount: 0}
	assert.InDelta(t, 0.5, l.Reliability(), 1e-9)

	l = &Lesson{HelpfulCount: 4, HarmfulCount: 1}
	assert.InDelta(t, 5.0/7.0, l.Reliability(), 1e-9)
}

func TestSnapshotAndLoadRoundTripPreservesIDsAndCounters(t *testing.T) {
	s := newTestStore()
	id, err := s.Upsert(Candidate{RuleText: "rule", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err)

	_, err = s.Get(id)
	require.NoError(t, err)
	// Get returns a copy, so set the counters on the stored lesson itself.
	s.byID[id].HelpfulCount = 3
	s.byID[id].HarmfulCount = 1

	snap := s.Snapshot()
	reloaded := NewMemoryStore()
	reloaded.Load(snap)

	got, err := reloaded.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 3, got.HelpfulCount)
	assert.Equal(t, 1, got.HarmfulCount)
}

func TestLinkConflictUnknownIDReturnsError(t *testing.T) {
	s := newTestStore()
	id, err := s.Upsert(Candidate{RuleText: "rule", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err)
	assert.Error(t, s.LinkConflict(id, "does-not-exist"))
}
