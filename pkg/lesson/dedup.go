package lesson

import (
	"sort"
	"strings"
	"unicode"
)

// DedupJaccardThreshold and ConflictJaccardCeiling are the spec's fixed
// thresholds (4.2/4.2): two candidates sharing trigger fingerprints merge
// at >= 0.65 rule-text similarity; they conflict at < 0.25.
const (
	DedupJaccardThreshold  = 0.65
	ConflictJaccardCeiling = 0.25
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "to": true,
	"of": true, "in": true, "on": true, "and": true, "or": true, "be": true,
	"this": true, "that": true, "it": true, "for": true, "with": true,
}

// tokenize splits rule text into a lowercased word-token set, skipping a
// small stop-word list, grounded on the teacher's ace.tokenize.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	s = strings.ToLower(s)

	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if !stopWords[w] {
			tokens[w] = true
		}
		word.Reset()
	}

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// jaccard computes the Jaccard index between two token sets, grounded on
// the teacher's ace.jaccardSimilarity.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// ruleTextJaccard is a small convenience wrapper over tokenize+jaccard.
func ruleTextJaccard(a, b string) float64 {
	return jaccard(tokenize(a), tokenize(b))
}

// sameTriggerSet reports whether two fingerprint sets are identical.
func sameTriggerSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := make(map[string]bool, len(a))
	for _, f := range a {
		as[f] = true
	}
	for _, f := range b {
		if !as[f] {
			return false
		}
	}
	return true
}

// sharesFingerprint reports whether two fingerprint sets overlap by at
// least one element.
func sharesFingerprint(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, f := range a {
		as[f] = true
	}
	for _, f := range b {
		if as[f] {
			return true
		}
	}
	return false
}

// isDuplicate implements the dedup rule: same trigger set AND rule-text
// Jaccard >= 0.65.
func isDuplicate(existing *Lesson, candidate Candidate) bool {
	if !sameTriggerSet(existing.TriggerFingerprints, candidate.TriggerFingerprints) {
		return false
	}
	return ruleTextJaccard(existing.RuleText, candidate.RuleText) >= DedupJaccardThreshold
}

// isConflict implements the conflict rule: trigger sets overlap by >= 1
// fingerprint AND rule-text Jaccard < 0.25.
func isConflict(a, b *Lesson) bool {
	if a.ID == b.ID {
		return false
	}
	if !sharesFingerprint(a.TriggerFingerprints, b.TriggerFingerprints) {
		return false
	}
	return ruleTextJaccard(a.RuleText, b.RuleText) < ConflictJaccardCeiling
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
