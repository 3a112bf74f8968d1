// Package fingerprint turns noisy, tool-specific failure output into a
// compact stable key so recurrence across sessions is detectable, plus a
// small set of generic tags describing the failure shape.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Unspecified is returned, together with an empty tag set, whenever the
// input cannot be normalized into anything more specific.
const Unspecified = "unspecified"

var lowerCaser = cases.Lower(language.Und)

var (
	quotedStringRe = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	pathRe         = regexp.MustCompile(`(?:[a-zA-Z]:)?(?:[./\\][\w.\-]+)+`)
	lineColRe      = regexp.MustCompile(`\b(?:line|row|col(?:umn)?)\s*[:=]?\s*\d+(?:[:,]\s*\d+)?`)
	hexRe          = regexp.MustCompile(`\b0x[0-9a-f]+\b`)
	uuidRe         = regexp.MustCompile(`\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	timestampRe    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[tT ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:[zZ]|[+\-]\d{2}:?\d{2})?\b`)
	multiDigitRe   = regexp.MustCompile(`\b\d{2,}\b`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// Fingerprint computes the stable key for one failed step. toolFamily
// scopes the result so unrelated tools with identical residual text never
// collide. Fingerprint never returns an error; malformed input degrades to
// "<toolFamily>:unspecified".
func Fingerprint(toolFamily, errorText, actionPayload, stateSignature string) string {
	family := safeFamily(toolFamily)

	if strings.TrimSpace(errorText) == "" {
		if strings.TrimSpace(actionPayload) == "" && strings.TrimSpace(stateSignature) == "" {
			return family + ":" + Unspecified
		}
		return fingerprintFromState(family, actionPayload, stateSignature)
	}

	residual := normalizeText(errorText)
	if residual == "" {
		return family + ":" + Unspecified
	}
	return family + ":" + residual
}

// fingerprintFromState derives a fingerprint for channels with no error
// text (e.g. no_progress): <before_state_hash>|<action_shape>|<after_state_hash>|<reason>.
// stateSignature is expected as "before|after|reason"; any other shape
// degrades gracefully rather than erroring.
func fingerprintFromState(family, actionPayload, stateSignature string) string {
	before, after, reason := "", "", "no_progress"
	if parts := strings.SplitN(stateSignature, "|", 3); len(parts) == 3 {
		before, after, reason = parts[0], parts[1], parts[2]
	} else if stateSignature != "" {
		before = stateSignature
	}

	actionShape := normalizeText(actionPayload)
	if actionShape == "" {
		actionShape = Unspecified
	}

	return family + ":" + strings.Join([]string{
		shortHash(before), actionShape, shortHash(after), normalizeText(reason),
	}, "|")
}

func shortHash(s string) string {
	if s == "" {
		return "-"
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// normalizeText implements the Fingerprinter's normalization contract:
// lowercase, strip volatile literals, collapse whitespace.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = lowerCaser.String(s)

	s = quotedStringRe.ReplaceAllString(s, " ")
	s = uuidRe.ReplaceAllString(s, " ")
	s = hexRe.ReplaceAllString(s, " ")
	s = timestampRe.ReplaceAllString(s, " ")
	s = lineColRe.ReplaceAllString(s, " ")
	s = pathRe.ReplaceAllString(s, " ")
	s = multiDigitRe.ReplaceAllString(s, " ")

	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func safeFamily(toolFamily string) string {
	family := strings.TrimSpace(strings.ToLower(toolFamily))
	if family == "" {
		return Unspecified
	}
	// A tool family is an identifier, not free text; strip anything that
	// would break the "<family>:<residual>" delimiter convention.
	family = strings.ReplaceAll(family, ":", "_")
	family = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, family)
	return family
}
