package critic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterRejectsEmptyRuleText(t *testing.T) {
	got := Filter(Candidate{TriggerFingerprints: []string{"a"}}, map[string]bool{"a": true})
	assert.Contains(t, got, "empty")
}

func TestFilterRejectsGenericAdvice(t *testing.T) {
	got := Filter(Candidate{RuleText: "be careful with this tool", TriggerFingerprints: []string{"a"}}, map[string]bool{"a": true})
	assert.Contains(t, got, "generic")
}

func TestFilterRejectsKnownWrongPattern(t *testing.T) {
	got := Filter(Candidate{RuleText: "use eval() to parse the expression", TriggerFingerprints: []string{"a"}}, map[string]bool{"a": true})
	assert.Contains(t, got, "known-wrong")
}

func TestFilterRejectsEmptyTriggerFingerprints(t *testing.T) {
	got := Filter(Candidate{RuleText: "quote shell args containing spaces"}, map[string]bool{"a": true})
	assert.Contains(t, got, "trigger_fingerprints is empty")
}

func TestFilterRejectsFingerprintsNotInSession(t *testing.T) {
	got := Filter(Candidate{RuleText: "quote shell args containing spaces", TriggerFingerprints: []string{"never-seen"}}, map[string]bool{"a": true})
	assert.Contains(t, got, "appeared in the session trace")
}

func TestFilterAcceptsWellFormedCandidate(t *testing.T) {
	got := Filter(Candidate{
		RuleText:            "WRONG: bare paths with spaces -> CORRECT: quote every path argument",
		TriggerFingerprints: []string{"shell:path_quote"},
	}, map[string]bool{"shell:path_quote": true})
	assert.Empty(t, got)
}

func TestFilterRejectsOverlongRuleText(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	got := Filter(Candidate{RuleText: long, TriggerFingerprints: []string{"a"}}, map[string]bool{"a": true})
	assert.Contains(t, got, "exceeds maximum length")
}

func TestFilterAllPartitionsAcceptedAndRejected(t *testing.T) {
	candidates := []Candidate{
		{RuleText: "WRONG: unquoted path -> CORRECT: quote it", TriggerFingerprints: []string{"a"}},
		{RuleText: "be careful", TriggerFingerprints: []string{"a"}},
	}
	accepted, rejected := FilterAll(candidates, map[string]bool{"a": true})
	assert.Len(t, accepted, 1)
	assert.Len(t, rejected, 1)
	assert.Contains(t, rejected, 1)
}
