package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/examtrainer/internal/model"

	_ "modernc.org/sqlite"
)

// SnapshotKey is the metadata key the live exam session is persisted under.
const SnapshotKey = "exam"

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		average INTEGER NOT NULL DEFAULT 0,
		answered INTEGER NOT NULL DEFAULT 0,
		summary TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exam_results_subject ON exam_results(subject);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSnapshot persists the live exam session under SnapshotKey.
func (s *Store) SaveSnapshot(snap model.ExamSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.SetMetadata(SnapshotKey, string(data))
}

// LoadSnapshot returns the persisted exam session, or nil if there is none.
func (s *Store) LoadSnapshot() (*model.ExamSnapshot, error) {
	raw, err := s.GetMetadata(SnapshotKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var snap model.ExamSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// ClearSnapshot removes the persisted exam session.
func (s *Store) ClearSnapshot() error {
	return s.DeleteMetadata(SnapshotKey)
}
