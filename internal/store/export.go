package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examtrainer/internal/model"
)

// SaveResult archives a finished exam. Saving the same exam id again
// overwrites the earlier row.
func (s *Store) SaveResult(r model.ExamResult) error {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO exam_results (id, subject, started_at, finished_at, average, answered, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET finished_at = ?, average = ?, answered = ?, summary = ?`,
		r.ID, r.Subject, r.StartedAt, r.FinishedAt, r.Summary.Average, r.Summary.Answered, string(summary),
		r.FinishedAt, r.Summary.Average, r.Summary.Answered, string(summary),
	)
	if err != nil {
		return err
	}
	slog.Debug("archived exam result", "id", r.ID, "subject", r.Subject, "average", r.Summary.Average)
	return nil
}

// GetResult returns an archived exam, or nil if it does not exist.
func (s *Store) GetResult(id string) (*model.ExamResult, error) {
	row := s.db.QueryRow(
		`SELECT id, subject, started_at, finished_at, summary FROM exam_results WHERE id = ?`, id,
	)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResults returns archived exams, newest first. An empty subject lists all.
func (s *Store) ListResults(subject string) ([]model.ExamResult, error) {
	query := `SELECT id, subject, started_at, finished_at, summary FROM exam_results`
	var args []any
	if subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY finished_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ExamResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (model.ExamResult, error) {
	var (
		r       model.ExamResult
		summary string
	)
	if err := sc.Scan(&r.ID, &r.Subject, &r.StartedAt, &r.FinishedAt, &summary); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return r, fmt.Errorf("decode summary of %s: %w", r.ID, err)
	}
	return r, nil
}
