package lesson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
)

// JSONLStore is an append-mostly JSONL-backed Store: every mutation appends
// the lesson's full current state as one line; periodic compaction rewrites
// the file to one line per lesson (write temp, fsync, rename), grounded on
// the teacher's LearningsFile.Save atomic-write pattern.
type JSONLStore struct {
	mu                  sync.Mutex
	path                string
	mem                 *MemoryStore
	compactionThreshold int
	appendsSinceCompact int
}

// OpenJSONLStore loads path (if it exists) and returns a ready Store.
// compactionThreshold of 0 disables automatic compaction.
func OpenJSONLStore(path string, compactionThreshold int) (*JSONLStore, error) {
	s := &JSONLStore{
		path:                path,
		mem:                 NewMemoryStore(),
		compactionThreshold: compactionThreshold,
	}
	s.mem.onWrite = s.appendLocked

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONLStore) load() error {
	lockFile, err := acquireFileLock(s.path, lockShared)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "lock lesson store for read")
	}
	defer releaseFileLock(lockFile)

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "open lesson store")
	}
	defer f.Close()

	byID := make(map[string]*Lesson)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var l Lesson
		if err := json.Unmarshal(line, &l); err != nil {
			return memverrors.Wrap(err, memverrors.LessonStoreIO, "parse lesson store line")
		}
		byID[l.ID] = &l
		count++
	}
	if err := scanner.Err(); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "scan lesson store")
	}

	lessons := make([]*Lesson, 0, len(byID))
	for _, l := range byID {
		lessons = append(lessons, l)
	}
	s.mem.Load(lessons)
	s.appendsSinceCompact = count - len(byID)
	return nil
}

// appendLocked is MemoryStore's persistence hook: it writes one JSON line
// per mutation, without holding MemoryStore's own lock (callers of Upsert/
// Transition/LinkConflict already hold it), so this only needs its own
// file-level lock.
func (s *JSONLStore) appendLocked(l *Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendLine(l); err != nil {
		// Persistence hooks cannot return errors to MemoryStore callers;
		// degrade silently here, same failure semantics as DegradingStore
		// one layer up, which is where callers actually observe I/O health.
		return
	}

	s.appendsSinceCompact++
	if s.compactionThreshold > 0 && s.appendsSinceCompact >= s.compactionThreshold {
		_ = s.compactLocked()
	}
}

func (s *JSONLStore) appendLine(l *Lesson) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "create lesson store directory")
	}

	lockFile, err := acquireFileLock(s.path, lockExclusive)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "lock lesson store for append")
	}
	defer releaseFileLock(lockFile)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "open lesson store for append")
	}
	defer f.Close()

	data, err := json.Marshal(l)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "marshal lesson")
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "append lesson")
	}
	return f.Sync()
}

// Compact rewrites the file to exactly one line per lesson. Testable
// property 10: every non-archived lesson's id and merged counters survive
// compaction (archived lessons are still written; compaction never drops
// data, it only collapses duplicate historical lines per id).
func (s *JSONLStore) Compact() error {
	s.mem.mu.RLock()
	defer s.mem.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked()
}

// compactLocked requires s.mu and MemoryStore's lock to be held (Compact
// takes the latter itself; the write hook already runs under it), so it
// reads the lessons directly instead of through Snapshot.
func (s *JSONLStore) compactLocked() error {
	lockFile, err := acquireFileLock(s.path, lockExclusive)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "lock lesson store for compaction")
	}
	defer releaseFileLock(lockFile)

	lessons := make([]*Lesson, 0, len(s.mem.byID))
	for _, l := range s.mem.byID {
		lessons = append(lessons, l)
	}

	tmpPath := s.path + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "create compaction temp file")
	}

	w := bufio.NewWriter(tmp)
	for _, l := range lessons {
		data, err := json.Marshal(l)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return memverrors.Wrap(err, memverrors.LessonStoreIO, "marshal lesson during compaction")
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return memverrors.Wrap(err, memverrors.LessonStoreIO, "write compaction temp file")
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "flush compaction temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "sync compaction temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "close compaction temp file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "rename compaction temp file")
	}

	s.appendsSinceCompact = 0
	return nil
}

func (s *JSONLStore) Upsert(candidate Candidate) (string, error) { return s.mem.Upsert(candidate) }
func (s *JSONLStore) Get(id string) (*Lesson, error)              { return s.mem.Get(id) }
func (s *JSONLStore) Iter(filter Filter) ([]*Lesson, error)       { return s.mem.Iter(filter) }
func (s *JSONLStore) Transition(id string, newStatus Status, reason string) error {
	return s.mem.Transition(id, newStatus, reason)
}
func (s *JSONLStore) LinkConflict(aID, bID string) error { return s.mem.LinkConflict(aID, bID) }
