package event

import (
	"bufio"
	"encoding/json"
	"os"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
)

// record is the superset shape used to distinguish error_event lines from
// the terminal session_metrics line when reading a log back.
type record struct {
	Kind string `json:"kind"`
}

// ReadAll reads every line of an event log file and splits it into its
// ErrorEvents and (if present) terminal SessionMetrics. A missing file is
// treated as an empty log, not an error.
func ReadAll(path string) ([]ErrorEvent, *SessionMetrics, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "open event log")
	}
	defer f.Close()

	var events []ErrorEvent
	var metrics *SessionMetrics

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "parse event log line")
		}

		switch r.Kind {
		case "session_metrics":
			var wrapper struct {
				SessionMetrics
			}
			if err := json.Unmarshal(line, &wrapper); err != nil {
				return nil, nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "parse session metrics")
			}
			m := wrapper.SessionMetrics
			metrics = &m
		default:
			var ev ErrorEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return nil, nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "parse error event")
			}
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "scan event log")
	}

	return events, metrics, nil
}
