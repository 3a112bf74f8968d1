package critic

import "strings"

// genericPhrases rejects rule_text too vague to act on, grounded on the
// spec's own examples ("be careful", "read the docs").
var genericPhrases = []string{
	"be careful",
	"read the docs",
	"double check",
	"make sure to",
	"pay attention",
	"be more careful",
	"try again",
	"think carefully",
}

// knownWrongPatterns is a curated defense against lesson poisoning: rule
// text matching a pattern here is rejected even if it otherwise looks
// well-formed, because it has been observed as a hallucinated "fix" that
// tools actually reject.
var knownWrongPatterns = []string{
	"use eval(",
	"disable ssl verification",
	"ignore the error and continue",
	"always retry indefinitely",
}

const maxRuleTextLength = 160

// Filter applies the quality filter (spec 4.5) to one raw candidate,
// given the set of fingerprints that actually appeared in the session
// trace. It returns the rejection reason, or "" if the candidate passes.
func Filter(c Candidate, sessionFingerprints map[string]bool) string {
	text := strings.ToLower(strings.TrimSpace(c.RuleText))

	if text == "" {
		return "empty rule_text"
	}
	if len(c.RuleText) > maxRuleTextLength {
		return "rule_text exceeds maximum length"
	}
	for _, phrase := range genericPhrases {
		if strings.Contains(text, phrase) {
			return "rule_text is generic advice"
		}
	}
	for _, pattern := range knownWrongPatterns {
		if strings.Contains(text, pattern) {
			return "rule_text matches a known-wrong pattern"
		}
	}

	if len(c.TriggerFingerprints) == 0 {
		return "trigger_fingerprints is empty"
	}
	anyPresent := false
	for _, fp := range c.TriggerFingerprints {
		if sessionFingerprints[fp] {
			anyPresent = true
			break
		}
	}
	if !anyPresent {
		return "no trigger_fingerprints appeared in the session trace"
	}

	return ""
}

// FilterAll partitions candidates into accepted and rejected-with-reason.
func FilterAll(candidates []Candidate, sessionFingerprints map[string]bool) (accepted []Candidate, rejected map[int]string) {
	rejected = make(map[int]string)
	for i, c := range candidates {
		if reason := Filter(c, sessionFingerprints); reason != "" {
			rejected[i] = reason
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted, rejected
}
