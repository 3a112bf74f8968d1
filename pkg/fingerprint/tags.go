package fingerprint

import "strings"

// Tags are hints, never required for retrieval to function; Extract always
// succeeds and may return an empty set.

// vocabulary is the fixed set of generic tags the Fingerprinter recognizes,
// mapped to the residual-text/action-shape substrings that trigger them.
// Order matters only for determinism of iteration in tests; matching is
// independent per tag.
var vocabulary = []struct {
	tag      string
	triggers []string
}{
	{"syntax_structure", []string{"syntax", "parse error", "unexpected token", "malformed"}},
	{"unknown_symbol", []string{"unknown", "undefined", "not recognized", "no such"}},
	{"path_quote", []string{"quote", "quoting", "unterminated string", "escape"}},
	{"operator_mismatch", []string{"operator", ">", "<", "expected one of"}},
	{"function_case", []string{"case", "uppercase", "lowercase", "mixed case"}},
	{"sort_direction", []string{"sort", "ascending", "descending", "order by"}},
	{"no_progress", []string{"no_progress", "stuck", "no change", "repeated"}},
	{"constraint_failed", []string{"constraint_failed", "constraint", "violat"}},
}

// Extract derives the generic tag set from residual failure text and the
// raw action payload. Input need not be pre-normalized.
func Extract(errorText, actionPayload string) []string {
	haystack := strings.ToLower(errorText + " " + actionPayload)
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	var tags []string
	for _, entry := range vocabulary {
		for _, trigger := range entry.triggers {
			if strings.Contains(haystack, trigger) {
				tags = append(tags, entry.tag)
				break
			}
		}
	}
	return tags
}
