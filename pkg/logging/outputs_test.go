package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOutputColor(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		color    bool
	}{
		{"ColorDebug", DEBUG, true},
		{"ColorInfo", INFO, true},
		{"ColorWarn", WARN, true},
		{"ColorError", ERROR, true},
		{"ColorFatal", FATAL, true},
		{"NoColor", INFO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := &bytes.Buffer{}
			console := &ConsoleOutput{
				writer: buffer,
				color:  tt.color,
			}

			entry := LogEntry{
				Time:     time.Now().UnixNano(),
				Severity: tt.severity,
				Message:  "test message",
			}

			err := console.Write(entry)
			require.NoError(t, err)

			output := buffer.String()
			if tt.color {
				assert.Contains(t, output, "\033[")
			} else {
				assert.NotContains(t, output, "\033[")
			}
		})
	}
}

func TestOutputSyncAndClose(t *testing.T) {
	// Test with file output
	tmpFile, err := os.CreateTemp("", "log-test-*")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	console := &ConsoleOutput{
		writer: tmpFile,
		color:  false,
	}

	// Test Sync
	err = console.Sync()
	assert.NoError(t, err)

	// Test Close
	err = console.Close()
	assert.NoError(t, err)

	// Test with non-syncable writer
	buffer := &bytes.Buffer{}
	console = &ConsoleOutput{
		writer: buffer,
		color:  false,
	}

	err = console.Sync()
	assert.NoError(t, err)

	err = console.Close()
	assert.NoError(t, err)
}

func TestJSONLOutputAppendsOneLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memv2.jsonl")

	out, err := NewJSONLOutput(path)
	require.NoError(t, err)

	require.NoError(t, out.Write(LogEntry{
		Time:      time.Now().UnixNano(),
		Severity:  INFO,
		Message:   "lesson promoted",
		SessionID: "sess-1",
		DomainKey: "csvtool:local",
		Fields:    map[string]interface{}{"lesson_id": "L001"},
	}))
	require.NoError(t, out.Write(LogEntry{
		Time:     time.Now().UnixNano(),
		Severity: WARN,
		Message:  "retrieval capped",
	}))
	require.NoError(t, out.Sync())
	require.NoError(t, out.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first jsonLogLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first.Severity)
	assert.Equal(t, "sess-1", first.SessionID)
	assert.Equal(t, "csvtool:local", first.DomainKey)
	assert.Equal(t, "L001", first.Fields["lesson_id"])

	var second jsonLogLine
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "WARN", second.Severity)
	assert.Empty(t, second.SessionID)
}

func TestJSONLOutputAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memv2.jsonl")

	out1, err := NewJSONLOutput(path)
	require.NoError(t, err)
	require.NoError(t, out1.Write(LogEntry{Time: time.Now().UnixNano(), Severity: INFO, Message: "first"}))
	require.NoError(t, out1.Close())

	out2, err := NewJSONLOutput(path)
	require.NoError(t, err)
	require.NoError(t, out2.Write(LogEntry{Time: time.Now().UnixNano(), Severity: INFO, Message: "second"}))
	require.NoError(t, out2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Count(data, []byte("\n"))
	assert.Equal(t, 2, lines)
}
