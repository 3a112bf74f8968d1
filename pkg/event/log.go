package event

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
)

// Log is an append-only per-session event log: events/session-<id>.jsonl.
// It guarantees that StepIndex values written through AppendError are
// strictly increasing, satisfying the ordering invariant that an ErrorEvent
// for step n is observable before step n+1 begins.
type Log struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	lastIndex int
	haveIndex bool
}

// Open creates (or appends to) the event log file at path. The directory is
// created if necessary.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "create event log directory")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, memverrors.Wrap(err, memverrors.LessonStoreIO, "open event log")
	}

	return &Log{path: path, file: f}, nil
}

// AppendError writes one ErrorEvent. It returns an error, without writing,
// if ev.StepIndex does not strictly increase relative to the last event
// appended through this handle.
func (l *Log) AppendError(ev ErrorEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.haveIndex && ev.StepIndex <= l.lastIndex {
		return memverrors.WithFields(
			memverrors.New(memverrors.ValidationShapeInvalid, "event step index must strictly increase"),
			memverrors.Fields{"last_index": l.lastIndex, "new_index": ev.StepIndex},
		)
	}

	lockFile, err := acquireFileLock(l.path, lockExclusive)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "lock event log")
	}
	defer releaseFileLock(lockFile)

	ev.Kind = "error_event"
	if err := l.writeLine(ev); err != nil {
		return err
	}

	l.lastIndex = ev.StepIndex
	l.haveIndex = true
	return nil
}

// AppendMetrics writes the session's terminal SessionMetrics record. It is
// valid to call this even when the session produced zero ErrorEvents, in
// which case the event log contains only this line.
func (l *Log) AppendMetrics(m SessionMetrics) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lockFile, err := acquireFileLock(l.path, lockExclusive)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "lock event log")
	}
	defer releaseFileLock(lockFile)

	return l.writeLine(struct {
		Kind string `json:"kind"`
		SessionMetrics
	}{Kind: "session_metrics", SessionMetrics: m})
}

func (l *Log) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "marshal event")
	}
	data = append(data, '\n')

	w := bufio.NewWriter(l.file)
	if _, err := w.Write(data); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "write event")
	}
	if err := w.Flush(); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "flush event")
	}
	return l.file.Sync()
}

// Close flushes and closes the underlying file. The event log is always
// closed cleanly even when the session ended in failure.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
