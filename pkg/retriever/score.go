package retriever

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/artemgetmann/memv2/pkg/lesson"
)

// tokenize lowercases and splits on non-alphanumeric runes, grounded on the
// teacher's ace.tokenize (duplicated here rather than imported from
// pkg/lesson, since that package's tokenizer drops stop words for dedup
// purposes while text_similarity here wants the raw token overlap).
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	s = strings.ToLower(s)

	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens[word.String()] = true
			word.Reset()
		}
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

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
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

func toSet(ss []string) map[string]bool {
	out := make(map[string]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}

// fingerprintMatch is 1 for an exact match, 0.5 when one fingerprint is a
// normalized prefix of another (e.g. a more specific variant retaining the
// same tool-family/channel shape), 0 otherwise.
func fingerprintMatch(query string, triggers []string) float64 {
	if query == "" {
		return 0
	}
	best := 0.0
	for _, t := range triggers {
		if t == query {
			return 1.0
		}
		if strings.HasPrefix(t, query) || strings.HasPrefix(query, t) {
			if best < 0.5 {
				best = 0.5
			}
		}
	}
	return best
}

func tagOverlap(queryTags, lessonTags []string) float64 {
	return jaccard(toSet(queryTags), toSet(lessonTags))
}

func textSimilarity(queryText string, l *lesson.Lesson) float64 {
	return jaccard(tokenize(queryText), tokenize(l.RuleText))
}

// recency applies exponential decay over a lesson's age with the given
// half-life, evaluated at "now".
func recency(l *lesson.Lesson, now time.Time, halfLifeDays float64) float64 {
	ageDays := now.Sub(l.UpdatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// score computes the weighted ranking formula for one lesson against a
// query (spec 4.3).
func score(q Query, l *lesson.Lesson, now time.Time, w Weights) float64 {
	fm := fingerprintMatch(q.Fingerprint, l.TriggerFingerprints)
	to := tagOverlap(q.Tags, l.Tags.All())
	queryText := strings.TrimSpace(q.TaskText + " " + q.ErrorText)
	ts := textSimilarity(queryText, l)
	rel := l.Reliability()
	rec := recency(l, now, RecencyHalfLifeDays)

	return w.FingerprintMatch*fm + w.TagOverlap*to + w.TextSimilarity*ts + w.Reliability*rel + w.Recency*rec
}
