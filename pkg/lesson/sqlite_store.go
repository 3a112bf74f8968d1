package lesson

import (
	"database/sql"
	"encoding/json"
	"sync"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-backed Store, grounded on the teacher's
// agents/memory.SQLiteStore: WAL mode, a single table keyed by id with a
// JSON value column, upsert via ON CONFLICT. As with JSONLStore, all
// dedup/conflict/lifecycle logic runs through an in-memory MemoryStore;
// this type only persists it.
type SQLiteStore struct {
	db          *sql.DB
	mu          sync.Mutex
	mem         *MemoryStore
	initialized sync.Once
}

// OpenSQLiteStore opens (creating if needed) a SQLite database at path and
// hydrates an in-memory index from it. path may be ":memory:" for tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, memverrors.WithFields(
			memverrors.Wrap(err, memverrors.LessonStoreIO, "open sqlite lesson store"),
			memverrors.Fields{"path": path},
		)
	}

	s := &SQLiteStore{
		db:  db,
		mem: NewMemoryStore(),
	}
	s.mem.onWrite = s.persistLocked

	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = memverrors.Wrap(err, memverrors.LessonStoreIO, "enable WAL mode")
			return
		}

		query := `
		CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_lessons_updated_at
		ON lessons(updated_at);
		`
		if _, err := s.db.Exec(query); err != nil {
			initErr = memverrors.Wrap(err, memverrors.LessonStoreIO, "create lessons table")
		}
	})
	return initErr
}

func (s *SQLiteStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT value FROM lessons")
	if err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "query lessons for load")
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return memverrors.Wrap(err, memverrors.LessonStoreIO, "scan lesson row")
		}
		var l Lesson
		if err := json.Unmarshal([]byte(value), &l); err != nil {
			return memverrors.Wrap(err, memverrors.LessonStoreIO, "unmarshal lesson row")
		}
		lessons = append(lessons, &l)
	}
	if err := rows.Err(); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "iterate lesson rows")
	}

	s.mem.Load(lessons)
	return nil
}

// persistLocked is MemoryStore's persistence hook.
func (s *SQLiteStore) persistLocked(l *Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(l)
	if err != nil {
		return
	}

	query := `
	INSERT INTO lessons (id, value, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		value = excluded.value,
		updated_at = CURRENT_TIMESTAMP
	`
	_, _ = s.db.Exec(query, l.ID, string(value))
}

func (s *SQLiteStore) Upsert(candidate Candidate) (string, error) { return s.mem.Upsert(candidate) }
func (s *SQLiteStore) Get(id string) (*Lesson, error)              { return s.mem.Get(id) }
func (s *SQLiteStore) Iter(filter Filter) ([]*Lesson, error)       { return s.mem.Iter(filter) }
func (s *SQLiteStore) Transition(id string, newStatus Status, reason string) error {
	return s.mem.Transition(id, newStatus, reason)
}
func (s *SQLiteStore) LinkConflict(aID, bID string) error { return s.mem.LinkConflict(aID, bID) }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return memverrors.Wrap(err, memverrors.LessonStoreIO, "close sqlite lesson store")
	}
	return nil
}
