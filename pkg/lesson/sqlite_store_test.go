package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreUpsertAndGet(t *testing.T) {
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Upsert(Candidate{
		RuleText:            "retry once on transient transport failures",
		TriggerFingerprints: []string{"http:no_progress"},
		DomainKey:           "api-client",
	})
	require.NoError(t, err)

	l, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCandidate, l.Status)
	assert.Equal(t, "api-client", l.DomainKey)
}

func TestSQLiteStorePersistsThroughReload(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/lessons.db"

	s1, err := OpenSQLiteStore(path)
	require.NoError(t, err)

	id, err := s1.Upsert(Candidate{
		RuleText:            "validate response schema before use",
		TriggerFingerprints: []string{"http:constraint_failed"},
		DomainKey:           "api-client",
	})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	l, err := s2.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
}

func TestSQLiteStoreTransitionPersists(t *testing.T) {
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Upsert(Candidate{RuleText: "rule text of its own", TriggerFingerprints: []string{"x"}, DomainKey: "d"})
	require.NoError(t, err)

	require.NoError(t, s.Transition(id, StatusSuppressed, "repeated non-positive activations"))

	l, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuppressed, l.Status)
}
