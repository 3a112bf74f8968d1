package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeSkipsStopWordsAndLowercases(t *testing.T) {
	tokens := tokenize("The Quick function is for Sorting a List")
	for _, w := range []string{"quick", "function", "sorting", "list"} {
		assert.True(t, tokens[w], "expected token %q", w)
	}
	for _, stop := range []string{"the", "is", "for", "a"} {
		assert.False(t, tokens[stop], "stop word %q should have been dropped", stop)
	}
}

func TestJaccardIdenticalSetsIsOne(t *testing.T) {
	a := tokenize("use sort ascending order")
	b := tokenize("use sort ascending order")
	assert.Equal(t, 1.0, jaccard(a, b))
}

func TestJaccardDisjointSetsIsZero(t *testing.T) {
	a := tokenize("apples bananas")
	b := tokenize("wrenches hammers")
	assert.Equal(t, 0.0, jaccard(a, b))
}

func TestJaccardBothEmptyIsOne(t *testing.T) {
	assert.Equal(t, 1.0, jaccard(map[string]bool{}, map[string]bool{}))
}

func TestSameTriggerSetOrderIndependent(t *testing.T) {
	assert.True(t, sameTriggerSet([]string{"x:1", "y:2"}, []string{"y:2", "x:1"}))
}

func TestSameTriggerSetDifferentSizes(t *testing.T) {
	assert.False(t, sameTriggerSet([]string{"a"}, []string{"a", "b"}))
}

func TestSharesFingerprintOverlap(t *testing.T) {
	assert.True(t, sharesFingerprint([]string{"a", "b"}, []string{"b", "c"}))
	assert.False(t, sharesFingerprint([]string{"a"}, []string{"b"}))
}

func TestIsDuplicateRequiresSameTriggersAndHighSimilarity(t *testing.T) {
	existing := &Lesson{
		RuleText:            "always quote paths containing spaces",
		TriggerFingerprints: []string{"shell:path_quote"},
	}

	dup := Candidate{
		RuleText:            "always quote paths that contain spaces",
		TriggerFingerprints: []string{"shell:path_quote"},
	}
	assert.True(t, isDuplicate(existing, dup), "near-identical rule text with same triggers should dedup")

	differentTriggers := Candidate{
		RuleText:            "always quote paths containing spaces",
		TriggerFingerprints: []string{"shell:unknown_symbol"},
	}
	assert.False(t, isDuplicate(existing, differentTriggers), "different trigger sets must never dedup")

	lowSimilarity := Candidate{
		RuleText:            "check the return code before proceeding",
		TriggerFingerprints: []string{"shell:path_quote"},
	}
	assert.False(t, isDuplicate(existing, lowSimilarity), "low rule-text similarity must not dedup")
}

func TestIsConflictRequiresOverlapAndLowSimilarity(t *testing.T) {
	a := &Lesson{ID: "a", RuleText: "always sort ascending", TriggerFingerprints: []string{"sql:sort_direction"}}
	b := &Lesson{ID: "b", RuleText: "never rely on default ordering", TriggerFingerprints: []string{"sql:sort_direction"}}
	assert.True(t, isConflict(a, b))

	similar := &Lesson{ID: "c", RuleText: "always sort in ascending order", TriggerFingerprints: []string{"sql:sort_direction"}}
	assert.False(t, isConflict(a, similar), "high similarity should not be treated as conflict")

	noOverlap := &Lesson{ID: "d", RuleText: "never rely on default ordering", TriggerFingerprints: []string{"sql:unknown_symbol"}}
	assert.False(t, isConflict(a, noOverlap), "no trigger overlap must never conflict")
}

func TestIsConflictSameLessonNeverConflicts(t *testing.T) {
	a := &Lesson{ID: "same", RuleText: "foo", TriggerFingerprints: []string{"x"}}
	assert.False(t, isConflict(a, a))
}
