package model

import "time"

// ExamResult is an archived, finished exam.
type ExamResult struct {
	ID         string      `json:"id"`
	Subject    string      `json:"subject"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Summary    ExamSummary `json:"summary"`
}

// ResultsExport is the top-level JSON structure of `examtrainer export`.
type ResultsExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Subject    string       `json:"subject,omitempty"`
	Count      int          `json:"count"`
	Results    []ExamResult `json:"results"`
}
