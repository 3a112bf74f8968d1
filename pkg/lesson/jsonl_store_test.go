package lesson

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLStoreOpenOnMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONLStore(filepath.Join(dir, "lessons.jsonl"), 0)
	require.NoError(t, err)

	all, err := s.Iter(Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJSONLStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lessons.jsonl")

	s1, err := OpenJSONLStore(path, 0)
	require.NoError(t, err)

	id, err := s1.Upsert(Candidate{
		RuleText:            "always check exit codes before parsing stdout",
		TriggerFingerprints: []string{"shell:no_progress"},
		DomainKey:           "shell-ops",
	})
	require.NoError(t, err)

	s2, err := OpenJSONLStore(path, 0)
	require.NoError(t, err)

	l, err := s2.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
	assert.Equal(t, "always check exit codes before parsing stdout", l.RuleText)
}

func TestJSONLStoreCompactionPreservesIDsAndCounters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lessons.jsonl")

	s, err := OpenJSONLStore(path, 0)
	require.NoError(t, err)

	idA, err := s.Upsert(Candidate{RuleText: "rule alpha shape", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err)
	idB, err := s.Upsert(Candidate{RuleText: "rule beta shape entirely", TriggerFingerprints: []string{"b"}, DomainKey: "d"})
	require.NoError(t, err)

	require.NoError(t, s.Transition(idA, StatusPromoted, "promoted by evidence"))

	require.NoError(t, s.Compact())

	reopened, err := OpenJSONLStore(path, 0)
	require.NoError(t, err)

	a, err := reopened.Get(idA)
	require.NoError(t, err)
	assert.Equal(t, StatusPromoted, a.Status)

	b, err := reopened.Get(idB)
	require.NoError(t, err)
	assert.Equal(t, StatusCandidate, b.Status)
}

func TestJSONLStoreAutoCompactsAtThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lessons.jsonl")

	s, err := OpenJSONLStore(path, 2)
	require.NoError(t, err)

	_, err = s.Upsert(Candidate{RuleText: "rule one of its own kind", TriggerFingerprints: []string{"a"}, DomainKey: "d"})
	require.NoError(t, err)
	_, err = s.Upsert(Candidate{RuleText: "rule two of its own kind entirely", TriggerFingerprints: []string{"b"}, DomainKey: "d"})
	require.NoError(t, err)

	assert.Equal(t, 0, s.appendsSinceCompact, "threshold of 2 reached should trigger compaction and reset the counter")
}
