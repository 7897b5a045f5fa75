package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Block is one of the three named groups an exam paper is split into.
type Block string

const (
	BlockA Block = "A"
	BlockB Block = "B"
	BlockC Block = "C"
)

// Blocks lists the exam blocks in paper order.
var Blocks = []Block{BlockA, BlockB, BlockC}

// Quota returns how many distinct questions may be answered in the block.
func (b Block) Quota() int {
	switch b {
	case BlockA:
		return 3
	case BlockB:
		return 2
	case BlockC:
		return 1
	default:
		return 0
	}
}

// Index returns the position of the block in paper order, or -1.
func (b Block) Index() int {
	for i, x := range Blocks {
		if x == b {
			return i
		}
	}
	return -1
}

// QuestionID identifies a question within a subject. Question sources send
// either JSON strings or numbers; both decode to the same textual form.
type QuestionID string

// UnmarshalJSON accepts a JSON string or number.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = QuestionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %s", data)
	}
	*id = QuestionID(n.String())
	return nil
}

// Less orders integer ids numerically before all other ids, which sort
// lexically. Integer ids of equal value ("7", "07") fall back to lexical order.
func (id QuestionID) Less(other QuestionID) bool {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(other), 10, 64)
	switch {
	case errA == nil && errB == nil:
		if a != b {
			return a < b
		}
		return id < other
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return id < other
}

// Question is an exam or practice question as served by the question source.
type Question struct {
	ID          QuestionID `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Explanation string     `json:"explanation,omitempty"`
	Checkpoints []string   `json:"checkpoints"`
	Module      string     `json:"module,omitempty"`
	Block       Block      `json:"block,omitempty"`
}

// ExamPaper is the exam-mode payload of the question source: three ordered
// question lists, or an error message when the subject cannot be examined.
type ExamPaper struct {
	A     []Question `json:"A,omitempty"`
	B     []Question `json:"B,omitempty"`
	C     []Question `json:"C,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Questions returns the questions of one block.
func (p ExamPaper) Questions(b Block) []Question {
	switch b {
	case BlockA:
		return p.A
	case BlockB:
		return p.B
	case BlockC:
		return p.C
	default:
		return nil
	}
}

// Len returns the total number of questions on the paper.
func (p ExamPaper) Len() int {
	return len(p.A) + len(p.B) + len(p.C)
}

// CheckpointHit is one entry of a scorer's hit list.
type CheckpointHit struct {
	Checkpoint string `json:"checkpoint"`
	Hit        bool   `json:"hit"`
}

// CheckResult is the canonical scorer output, whatever wire shape it came in.
type CheckResult struct {
	Coverage int             `json:"coverage"`
	Hits     []CheckpointHit `json:"result"`
	Comments []string        `json:"comments,omitempty"`
}

// Missed returns the checkpoints that were not hit, in scorer order.
func (r CheckResult) Missed() []string {
	missed := []string{}
	for _, h := range r.Hits {
		if !h.Hit {
			missed = append(missed, h.Checkpoint)
		}
	}
	return missed
}

// Matched returns the checkpoints that were hit, in scorer order.
func (r CheckResult) Matched() []string {
	var hit []string
	for _, h := range r.Hits {
		if h.Hit {
			hit = append(hit, h.Checkpoint)
		}
	}
	return hit
}

// AnswerKey identifies an answer record within an exam.
type AnswerKey struct {
	Block      Block
	QuestionID QuestionID
}

// AnswerRecord is the latest checked answer to one exam question.
type AnswerRecord struct {
	Block      Block      `json:"block"`
	QuestionID QuestionID `json:"question_id"`
	Text       string     `json:"text"`
	Coverage   int        `json:"coverage"`
	Missed     []string   `json:"missed"`
	Hit        []string   `json:"hit,omitempty"`
	Comments   []string   `json:"comments,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Key returns the record's map key.
func (r AnswerRecord) Key() AnswerKey {
	return AnswerKey{Block: r.Block, QuestionID: r.QuestionID}
}

// ExamState is the lifecycle state of an exam session.
type ExamState string

const (
	StateNotStarted ExamState = "not_started"
	StateRunning    ExamState = "running"
	StateFinished   ExamState = "finished"
)

// CheckpointTally counts how often a checkpoint was missed across an exam.
type CheckpointTally struct {
	Checkpoint string `json:"checkpoint"`
	Count      int    `json:"count"`
}

// BlockSummary aggregates the answers of one block.
type BlockSummary struct {
	Block    Block `json:"block"`
	Answered int   `json:"answered"`
	Quota    int   `json:"quota"`
	Average  int   `json:"average"`
}

// ExamSummary is the end-of-exam report.
type ExamSummary struct {
	Average  int               `json:"average"`
	Answered int               `json:"answered"`
	Missed   []CheckpointTally `json:"missed"`
	Blocks   []BlockSummary    `json:"blocks"`
}

// ReviewList returns the missed checkpoint names, most frequent first.
func (s ExamSummary) ReviewList() []string {
	names := make([]string, 0, len(s.Missed))
	for _, m := range s.Missed {
		names = append(names, m.Checkpoint)
	}
	return names
}

// ExamSnapshot is the persisted form of an exam session.
type ExamSnapshot struct {
	ID              string         `json:"id"`
	Version         uint64         `json:"version"`
	Subject         string         `json:"subject"`
	State           ExamState      `json:"state"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	DurationSeconds int            `json:"duration_seconds"`
	Paper           ExamPaper      `json:"paper"`
	Answers         []AnswerRecord `json:"answers"`
	Summary         *ExamSummary   `json:"summary,omitempty"`
}

// BlockStatus describes a block of a running or finished exam.
type BlockStatus struct {
	Block     Block      `json:"block"`
	Quota     int        `json:"quota"`
	Answered  int        `json:"answered"`
	Questions []Question `json:"questions"`
}

// ExamStatus is a read-only view of an exam session.
type ExamStatus struct {
	ID               string         `json:"id,omitempty"`
	Subject          string         `json:"subject,omitempty"`
	State            ExamState      `json:"state"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	DurationSeconds  int            `json:"duration_seconds"`
	RemainingSeconds int            `json:"remaining_seconds"`
	Remaining        string         `json:"remaining"`
	Blocks           []BlockStatus  `json:"blocks,omitempty"`
	Answers          []AnswerRecord `json:"answers,omitempty"`
	Summary          *ExamSummary   `json:"summary,omitempty"`
}
