package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pavelanni/examtrainer/internal/exam"
	"github.com/pavelanni/examtrainer/internal/model"
	"github.com/pavelanni/examtrainer/internal/scoring"
)

// QuestionSource provides subjects, practice questions and exam papers.
type QuestionSource interface {
	Subjects(ctx context.Context) ([]string, error)
	Questions(ctx context.Context, subject string) ([]model.Question, error)
	Exam(ctx context.Context, subject string) (model.ExamPaper, error)
}

// SessionStore persists the live exam and archives finished ones.
type SessionStore interface {
	SaveSnapshot(snap model.ExamSnapshot) error
	LoadSnapshot() (*model.ExamSnapshot, error)
	ClearSnapshot() error
	SaveResult(r model.ExamResult) error
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithDuration sets the exam length in seconds.
func WithDuration(seconds int) Option {
	return func(t *Trainer) { t.duration = seconds }
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(t *Trainer) { t.metrics = m }
}

// WithSessionOptions passes options through to the exam session.
func WithSessionOptions(opts ...exam.Option) Option {
	return func(t *Trainer) { t.sessionOpts = append(t.sessionOpts, opts...) }
}

// Trainer is the single-user exam trainer: practice checks against the loaded
// subject plus one timed exam session.
type Trainer struct {
	source      QuestionSource
	scorer      scoring.Scorer
	store       SessionStore
	metrics     *Metrics
	duration    int
	sessionOpts []exam.Option
	session     *exam.Session

	mu       sync.Mutex
	subject  string
	practice map[model.QuestionID]model.Question

	// persistMu orders snapshot writes; saved is the last version written.
	persistMu sync.Mutex
	saved     uint64
}

// New creates a trainer. store may be nil to disable persistence.
func New(source QuestionSource, scorer scoring.Scorer, store SessionStore, opts ...Option) *Trainer {
	t := &Trainer{
		source:   source,
		scorer:   scorer,
		store:    store,
		duration: exam.DefaultDurationSeconds,
	}
	for _, opt := range opts {
		opt(t)
	}
	sessOpts := append([]exam.Option{}, t.sessionOpts...)
	sessOpts = append(sessOpts, exam.WithOnChange(t.persist), exam.WithOnFinish(t.archive))
	t.session = exam.NewSession(sessOpts...)
	return t
}

// Resume restores the persisted exam, if any. An exam whose time ran out
// while the process was down is finished and archived.
func (t *Trainer) Resume() error {
	if t.store == nil {
		return nil
	}
	snap, err := t.store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load exam snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	if err := t.session.Restore(*snap); err != nil {
		return err
	}
	t.mu.Lock()
	t.subject = snap.Subject
	t.mu.Unlock()
	slog.Info("resumed exam", "id", snap.ID, "subject", snap.Subject, "state", t.session.State())
	return nil
}

// Session exposes the underlying exam session.
func (t *Trainer) Session() *exam.Session {
	return t.session
}

// Subjects lists the subjects offered by the question source.
func (t *Trainer) Subjects(ctx context.Context) ([]string, error) {
	return t.source.Subjects(ctx)
}

// LoadSubject switches to subject: it fetches the practice questions, resets
// any exam and clears the persisted one.
func (t *Trainer) LoadSubject(ctx context.Context, subject string) ([]model.Question, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, &model.InvalidSubjectError{Message: "subject is empty"}
	}
	questions, err := t.source.Questions(ctx, subject)
	if err != nil {
		return nil, err
	}

	t.session.Reset()

	practice := make(map[model.QuestionID]model.Question, len(questions))
	for _, q := range questions {
		practice[q.ID] = q
	}
	t.mu.Lock()
	t.subject = subject
	t.practice = practice
	t.mu.Unlock()

	slog.Info("loaded subject", "subject", subject, "questions", len(questions))
	return questions, nil
}

// CheckPractice scores an answer to a practice question without recording it.
func (t *Trainer) CheckPractice(ctx context.Context, questionID model.QuestionID, text string) (model.CheckResult, error) {
	if strings.TrimSpace(text) == "" {
		return model.CheckResult{}, model.ErrEmptyAnswer
	}
	t.mu.Lock()
	q, ok := t.practice[questionID]
	t.mu.Unlock()
	if !ok {
		return model.CheckResult{}, fmt.Errorf("%w: %s", model.ErrUnknownQuestion, questionID)
	}
	res, err := t.scorer.Check(ctx, text, q.Checkpoints)
	if err != nil {
		t.metrics.scoringFailure(err)
		return model.CheckResult{}, err
	}
	return res, nil
}

// StartExam fetches an exam paper and starts the timer. A running exam is
// only replaced when restart is set.
func (t *Trainer) StartExam(ctx context.Context, subject string, restart bool) (model.ExamStatus, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		t.mu.Lock()
		subject = t.subject
		t.mu.Unlock()
	}
	if subject == "" {
		return model.ExamStatus{}, &model.InvalidSubjectError{Message: "no subject selected"}
	}
	if !restart && t.session.State() == model.StateRunning {
		return model.ExamStatus{}, model.ErrAlreadyRunning
	}

	paper, err := t.source.Exam(ctx, subject)
	if err != nil {
		return model.ExamStatus{}, err
	}
	if paper.Error != "" {
		return model.ExamStatus{}, &model.InvalidSubjectError{Message: paper.Error}
	}
	start := t.session.Start
	if restart {
		start = t.session.Restart
	}
	if err := start(subject, paper, t.duration); err != nil {
		return model.ExamStatus{}, err
	}

	t.mu.Lock()
	t.subject = subject
	t.mu.Unlock()

	st := t.session.Status()
	slog.Info("exam started", "id", st.ID, "subject", subject, "questions", paper.Len(), "duration", t.duration)
	return st, nil
}

// Answer validates, scores and records an exam answer. Validation failures
// are reported before the scorer is called, and a failed check leaves the
// session unchanged.
func (t *Trainer) Answer(ctx context.Context, questionID model.QuestionID, text string) (model.AnswerRecord, error) {
	rec, err := t.answer(ctx, questionID, text)
	t.metrics.answer(err)
	return rec, err
}

func (t *Trainer) answer(ctx context.Context, questionID model.QuestionID, text string) (model.AnswerRecord, error) {
	q, err := t.session.Validate(questionID, text)
	if err != nil {
		return model.AnswerRecord{}, err
	}
	res, err := t.scorer.Check(ctx, text, q.Checkpoints)
	if err != nil {
		t.metrics.scoringFailure(err)
		slog.Warn("answer check failed", "question", questionID, "error", err)
		return model.AnswerRecord{}, err
	}
	// The exam may have expired or filled up while the check was in flight.
	rec, err := t.session.SubmitAnswer(questionID, text, res)
	if err != nil {
		return model.AnswerRecord{}, err
	}
	slog.Debug("answer recorded", "block", rec.Block, "question", rec.QuestionID, "coverage", rec.Coverage)
	return rec, nil
}

// Finish ends the exam and returns its summary.
func (t *Trainer) Finish() (model.ExamSummary, error) {
	return t.session.Finish()
}

// Status returns the exam view, including the selected subject when no exam
// has been started yet.
func (t *Trainer) Status() model.ExamStatus {
	st := t.session.Status()
	if st.Subject == "" {
		t.mu.Lock()
		st.Subject = t.subject
		t.mu.Unlock()
	}
	return st
}

// persist writes snap under the session key, or clears the key for a reset
// session. Snapshots older than the last one written are dropped.
func (t *Trainer) persist(snap model.ExamSnapshot) {
	if t.store == nil {
		return
	}
	t.persistMu.Lock()
	defer t.persistMu.Unlock()
	if snap.Version <= t.saved {
		slog.Debug("dropping stale exam snapshot", "version", snap.Version, "saved", t.saved)
		return
	}

	var err error
	if snap.State == model.StateNotStarted {
		err = t.store.ClearSnapshot()
	} else {
		err = t.store.SaveSnapshot(snap)
	}
	if err != nil {
		slog.Error("failed to persist exam snapshot", "id", snap.ID, "state", snap.State, "error", err)
		return
	}
	t.saved = snap.Version
}

func (t *Trainer) archive(snap model.ExamSnapshot) {
	var summary model.ExamSummary
	if snap.Summary != nil {
		summary = *snap.Summary
	}
	t.metrics.finished(summary)
	slog.Info("exam finished", "id", snap.ID, "subject", snap.Subject, "average", summary.Average, "answered", summary.Answered)

	if t.store == nil || snap.FinishedAt == nil {
		return
	}
	err := t.store.SaveResult(model.ExamResult{
		ID:         snap.ID,
		Subject:    snap.Subject,
		StartedAt:  snap.StartedAt,
		FinishedAt: *snap.FinishedAt,
		Summary:    summary,
	})
	if err != nil {
		slog.Error("failed to archive exam result", "id", snap.ID, "error", err)
	}
}
