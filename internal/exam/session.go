package exam

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examtrainer/internal/model"
)

// DefaultDurationSeconds is the exam length used when none is configured.
const DefaultDurationSeconds = 3 * 60 * 60

// Option configures a Session.
type Option func(*Session)

// WithScheduler sets the scheduler driving the exam timer.
func WithScheduler(s Scheduler) Option {
	return func(sess *Session) { sess.sched = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(sess *Session) { sess.now = now }
}

// WithOnChange registers a callback receiving a snapshot after every mutation.
// Callbacks run after the session lock is released.
func WithOnChange(fn func(model.ExamSnapshot)) Option {
	return func(sess *Session) { sess.onChange = fn }
}

// WithOnFinish registers a callback receiving the snapshot of a finished exam,
// once per exam, whether it was finished explicitly or by the timer.
func WithOnFinish(fn func(model.ExamSnapshot)) Option {
	return func(sess *Session) { sess.onFinish = fn }
}

// Session is one user's exam: the paper, the recorded answers, the timer and
// the lifecycle state. A single mutex guards all of it, so a timer expiry and
// a concurrent answer submission are serialized.
type Session struct {
	mu       sync.Mutex
	sched    Scheduler
	now      func() time.Time
	onChange func(model.ExamSnapshot)
	onFinish func(model.ExamSnapshot)
	pending  []func()
	version  uint64

	id         string
	subject    string
	state      model.ExamState
	startedAt  time.Time
	finishedAt *time.Time
	duration   int
	paper      model.ExamPaper
	questions  map[model.QuestionID]model.Question
	answers    map[model.AnswerKey]model.AnswerRecord
	timer      *Timer
	summary    *model.ExamSummary
}

// NewSession creates a session in the not-started state.
func NewSession(opts ...Option) *Session {
	s := &Session{
		sched:   TickerScheduler{},
		now:     time.Now,
		state:   model.StateNotStarted,
		answers: map[model.AnswerKey]model.AnswerRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// locked runs fn under the session mutex, then runs any callbacks queued by fn
// after the mutex is released.
func (s *Session) locked(fn func()) {
	s.mu.Lock()
	fn()
	hooks := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, h := range hooks {
		h()
	}
}

// Start begins a new exam from paper. It is valid from the not-started and
// finished states; a running exam must be restarted instead.
func (s *Session) Start(subject string, paper model.ExamPaper, durationSeconds int) error {
	var err error
	s.locked(func() {
		if s.state == model.StateRunning {
			err = model.ErrAlreadyRunning
			return
		}
		err = s.startLocked(subject, paper, durationSeconds)
	})
	return err
}

// Restart replaces any exam, running or not, with a new one from paper. A
// rejected paper leaves the current exam untouched.
func (s *Session) Restart(subject string, paper model.ExamPaper, durationSeconds int) error {
	var err error
	s.locked(func() {
		err = s.startLocked(subject, paper, durationSeconds)
	})
	return err
}

func (s *Session) startLocked(subject string, paper model.ExamPaper, durationSeconds int) error {
	if err := checkPaper(paper); err != nil {
		return err
	}
	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}

	s.clearLocked()
	s.id = uuid.NewString()
	s.subject = subject
	s.paper = tagBlocks(paper)
	s.questions = indexQuestions(s.paper)
	s.duration = durationSeconds
	s.startedAt = s.now()
	s.state = model.StateRunning
	s.startTimerLocked(durationSeconds)
	s.changedLocked()
	return nil
}

func checkPaper(paper model.ExamPaper) error {
	if paper.Error != "" {
		return &model.InvalidSubjectError{Message: paper.Error}
	}
	if paper.Len() == 0 {
		return &model.InvalidSubjectError{Message: "exam paper has no questions"}
	}
	return nil
}

// Validate runs the checks SubmitAnswer would run, without recording
// anything, and returns the question being answered. Callers use it to reject
// a submission before paying for a scoring round trip.
func (s *Session) Validate(questionID model.QuestionID, text string) (model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked(questionID, text)
}

func (s *Session) validateLocked(questionID model.QuestionID, text string) (model.Question, error) {
	if s.state != model.StateRunning {
		return model.Question{}, model.ErrNotRunning
	}
	if strings.TrimSpace(text) == "" {
		return model.Question{}, model.ErrEmptyAnswer
	}
	q, ok := s.questions[questionID]
	if !ok {
		return model.Question{}, fmt.Errorf("%w: %s", model.ErrUnknownQuestion, questionID)
	}
	if err := CheckQuota(q.Block, s.answers, questionID); err != nil {
		return model.Question{}, err
	}
	return q, nil
}

// SubmitAnswer records a checked answer. The check result is computed by the
// caller; the session only decides whether it may be recorded.
func (s *Session) SubmitAnswer(questionID model.QuestionID, text string, result model.CheckResult) (model.AnswerRecord, error) {
	var (
		rec model.AnswerRecord
		err error
	)
	s.locked(func() {
		var q model.Question
		q, err = s.validateLocked(questionID, text)
		if err != nil {
			return
		}
		rec = model.AnswerRecord{
			Block:      q.Block,
			QuestionID: q.ID,
			Text:       strings.TrimSpace(text),
			Coverage:   clampCoverage(result.Coverage),
			Missed:     result.Missed(),
			Hit:        result.Matched(),
			Comments:   result.Comments,
			UpdatedAt:  s.now(),
		}
		s.answers[rec.Key()] = rec
		s.changedLocked()
	})
	return rec, err
}

// Finish ends a running exam and returns its summary. Finishing an already
// finished exam returns the same summary without side effects.
func (s *Session) Finish() (model.ExamSummary, error) {
	var (
		summary model.ExamSummary
		err     error
	)
	s.locked(func() {
		switch s.state {
		case model.StateNotStarted:
			err = model.ErrNotRunning
		case model.StateRunning:
			s.finishLocked()
			summary = *s.summary
		case model.StateFinished:
			summary = *s.summary
		}
	})
	return summary, err
}

func (s *Session) finishLocked() {
	if s.state != model.StateRunning {
		return
	}
	if s.timer != nil {
		s.timer.Cancel()
	}
	summary := Summarize(s.answers)
	s.summary = &summary
	now := s.now()
	s.finishedAt = &now
	s.state = model.StateFinished

	s.version++
	snap := s.snapshotLocked()
	if s.onFinish != nil {
		fn := s.onFinish
		s.pending = append(s.pending, func() { fn(snap) })
	}
	if s.onChange != nil {
		fn := s.onChange
		s.pending = append(s.pending, func() { fn(snap) })
	}
}

// Reset abandons any exam and returns to the not-started state. Change
// listeners receive a not-started snapshot.
func (s *Session) Reset() {
	s.locked(func() {
		s.clearLocked()
		s.state = model.StateNotStarted
		s.changedLocked()
	})
}

func (s *Session) clearLocked() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	s.id = ""
	s.subject = ""
	s.startedAt = time.Time{}
	s.finishedAt = nil
	s.duration = 0
	s.paper = model.ExamPaper{}
	s.questions = nil
	s.answers = map[model.AnswerKey]model.AnswerRecord{}
	s.summary = nil
}

func (s *Session) startTimerLocked(seconds int) {
	if s.timer != nil {
		s.timer.Cancel()
	}
	t := NewTimer(s.sched, s.finishLocked)
	t.guard = s.locked
	s.timer = t
	t.Start(seconds)
}

// changedLocked bumps the snapshot version and queues a change notification.
// Versions let listeners discard notifications delivered out of order.
func (s *Session) changedLocked() {
	s.version++
	if s.onChange == nil {
		return
	}
	snap := s.snapshotLocked()
	fn := s.onChange
	s.pending = append(s.pending, func() { fn(snap) })
}

// State returns the lifecycle state.
func (s *Session) State() model.ExamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Summary returns the summary of a finished exam.
func (s *Session) Summary() (model.ExamSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return model.ExamSummary{}, false
	}
	return *s.summary, true
}

// Status returns a read-only view of the session.
func (s *Session) Status() model.ExamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.ExamStatus{
		ID:              s.id,
		Subject:         s.subject,
		State:           s.state,
		DurationSeconds: s.duration,
	}
	if s.state == model.StateNotStarted {
		st.Remaining = FormatRemaining(0)
		return st
	}
	started := s.startedAt
	st.StartedAt = &started
	if s.state == model.StateRunning && s.timer != nil {
		st.RemainingSeconds = s.timer.Remaining()
	}
	st.Remaining = FormatRemaining(st.RemainingSeconds)
	for _, b := range model.Blocks {
		st.Blocks = append(st.Blocks, model.BlockStatus{
			Block:     b,
			Quota:     b.Quota(),
			Answered:  CountForBlock(b, s.answers),
			Questions: s.paper.Questions(b),
		})
	}
	st.Answers = orderedRecords(s.answers)
	if s.summary != nil {
		sum := *s.summary
		st.Summary = &sum
	}
	return st
}

func tagBlocks(p model.ExamPaper) model.ExamPaper {
	tag := func(qs []model.Question, b model.Block) []model.Question {
		out := make([]model.Question, len(qs))
		for i, q := range qs {
			q.Block = b
			out[i] = q
		}
		return out
	}
	return model.ExamPaper{
		A: tag(p.A, model.BlockA),
		B: tag(p.B, model.BlockB),
		C: tag(p.C, model.BlockC),
	}
}

// indexQuestions maps ids to tagged questions. An id listed in several blocks
// belongs to the first block it appears in.
func indexQuestions(p model.ExamPaper) map[model.QuestionID]model.Question {
	idx := make(map[model.QuestionID]model.Question, p.Len())
	for _, b := range model.Blocks {
		for _, q := range p.Questions(b) {
			if _, dup := idx[q.ID]; !dup {
				idx[q.ID] = q
			}
		}
	}
	return idx
}

func clampCoverage(c int) int {
	return min(max(c, 0), 100)
}
