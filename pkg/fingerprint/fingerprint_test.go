package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintPrefixedByToolFamily(t *testing.T) {
	fp := Fingerprint("gridtool", `operator ">" not recognized, expected one of: gt lt eq`, `{"op": ">"}`, "")
	assert.True(t, len(fp) > len("gridtool:"))
	assert.Contains(t, fp, "gridtool:")
}

func TestFingerprintStripsVolatileLiterals(t *testing.T) {
	a := Fingerprint("csvtool", `file "/tmp/run-8214/input.csv" line 42: unknown column "total_9"`, "", "")
	b := Fingerprint("csvtool", `file "/tmp/run-5591/input.csv" line 99: unknown column "total_2"`, "", "")
	assert.Equal(t, a, b, "residual text should be identical once volatile literals are stripped")
}

func TestFingerprintStripsTimestampsAndUUIDs(t *testing.T) {
	a := Fingerprint("httptool", "request 123e4567-e89b-12d3-a456-426614174000 failed at 2024-01-02T15:04:05Z: missing field", "", "")
	b := Fingerprint("httptool", "request 99999999-e89b-12d3-a456-426614174999 failed at 2025-06-06T09:30:00Z: missing field", "", "")
	assert.Equal(t, a, b)
}

func TestFingerprintEmptyErrorTextUsesStateSignature(t *testing.T) {
	fp := Fingerprint("gridtool", "", `{"action":"scan"}`, "before-state|after-state|no_progress")
	assert.Contains(t, fp, "gridtool:")
	assert.Contains(t, fp, "no_progress")
}

func TestFingerprintMalformedInputDegradesGracefully(t *testing.T) {
	fp := Fingerprint("", "", "", "")
	assert.Equal(t, "unspecified:unspecified", fp)
}

func TestFingerprintNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		Fingerprint("tool:with:colons", "\x00\x01 garbage \xff", "", "")
	})
}

func TestFingerprintDifferentToolFamiliesDoNotCollide(t *testing.T) {
	a := Fingerprint("gridtool", "unknown column total", "", "")
	b := Fingerprint("fluxtool", "unknown column total", "", "")
	assert.NotEqual(t, a, b)
}

func TestExtractTagsFromResidualText(t *testing.T) {
	tags := Extract(`operator ">" not recognized, expected one of: gt lt eq`, "")
	assert.Contains(t, tags, "operator_mismatch")
}

func TestExtractTagsToleratesEmptyInput(t *testing.T) {
	assert.Empty(t, Extract("", ""))
}

func TestExtractTagsAreHintsNotRequired(t *testing.T) {
	tags := Extract("completely unrelated gibberish qwerty", "")
	assert.Empty(t, tags)
}

func TestExtractNoProgressTag(t *testing.T) {
	tags := Extract("", "stuck, no change across 3 attempts")
	assert.Contains(t, tags, "no_progress")
}
