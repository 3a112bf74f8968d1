package event

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendErrorRequiresStrictlyIncreasingStepIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-s1.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.AppendError(ErrorEvent{SessionID: "s1", StepIndex: 0, Fingerprint: "t:a"}))
	require.NoError(t, log.AppendError(ErrorEvent{SessionID: "s1", StepIndex: 1, Fingerprint: "t:b"}))

	err = log.AppendError(ErrorEvent{SessionID: "s1", StepIndex: 1, Fingerprint: "t:c"})
	assert.Error(t, err, "repeated step index must be rejected")

	err = log.AppendError(ErrorEvent{SessionID: "s1", StepIndex: 0, Fingerprint: "t:d"})
	assert.Error(t, err, "decreasing step index must be rejected")
}

func TestReadAllRoundTripsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-s2.jsonl")
	log, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, log.AppendError(ErrorEvent{
		SessionID:   "s2",
		StepIndex:   0,
		ToolName:    "gridtool",
		ErrorText:   "unknown operator",
		Fingerprint: "gridtool:unknown operator",
		Tags:        []string{"operator_mismatch"},
		Channel:     ChannelHardFailure,
		Timestamp:   time.Now(),
	}))
	require.NoError(t, log.AppendMetrics(SessionMetrics{
		SessionID:  "s2",
		Passed:     false,
		Score:      0.0,
		Steps:      1,
		ToolErrors: 1,
		EvalSource: EvalSourceContract,
	}))
	require.NoError(t, log.Close())

	events, metrics, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "gridtool:unknown operator", events[0].Fingerprint)
	require.NotNil(t, metrics)
	assert.Equal(t, "s2", metrics.SessionID)
	assert.False(t, metrics.Passed)
}

func TestReadAllOnMissingFileReturnsEmpty(t *testing.T) {
	events, metrics, err := ReadAll(filepath.Join(t.TempDir(), "does-not-exist.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Nil(t, metrics)
}

func TestAppendMetricsAloneProducesNonEmptyLogBeyondHeader(t *testing.T) {
	// Boundary behavior 13: transport failure on first turn -> event log
	// exists but is empty beyond the header. Here "header" means zero
	// ErrorEvents; the terminal metrics line is always written.
	path := filepath.Join(t.TempDir(), "session-s3.jsonl")
	log, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, log.AppendMetrics(SessionMetrics{
		SessionID:  "s3",
		Passed:     false,
		EvalSource: EvalSourceNone,
		Reason:     "transport",
	}))
	require.NoError(t, log.Close())

	events, metrics, err := ReadAll(path)
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NotNil(t, metrics)
	assert.Equal(t, EvalSourceNone, metrics.EvalSource)
}
