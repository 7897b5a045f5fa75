package exam

import (
	"fmt"
	"time"

	"github.com/pavelanni/examtrainer/internal/model"
)

// Snapshot returns the persisted form of the session.
func (s *Session) Snapshot() model.ExamSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.ExamSnapshot {
	snap := model.ExamSnapshot{
		ID:              s.id,
		Version:         s.version,
		Subject:         s.subject,
		State:           s.state,
		StartedAt:       s.startedAt,
		DurationSeconds: s.duration,
		Paper:           s.paper,
		Answers:         orderedRecords(s.answers),
	}
	if s.finishedAt != nil {
		t := *s.finishedAt
		snap.FinishedAt = &t
	}
	if s.summary != nil {
		sum := *s.summary
		snap.Summary = &sum
	}
	return snap
}

// Restore replaces the session with a persisted snapshot. A running snapshot
// whose duration has already elapsed is finished immediately instead of
// resuming the timer. Snapshot versions continue from the restored one.
func (s *Session) Restore(snap model.ExamSnapshot) error {
	switch snap.State {
	case model.StateNotStarted, model.StateRunning, model.StateFinished:
	default:
		return fmt.Errorf("restore exam: unknown state %q", snap.State)
	}

	s.locked(func() {
		s.clearLocked()
		s.version = max(s.version, snap.Version)
		if snap.State == model.StateNotStarted {
			s.state = model.StateNotStarted
			return
		}

		s.id = snap.ID
		s.subject = snap.Subject
		s.startedAt = snap.StartedAt
		s.duration = snap.DurationSeconds
		s.paper = tagBlocks(snap.Paper)
		s.questions = indexQuestions(s.paper)
		for _, r := range snap.Answers {
			s.answers[r.Key()] = r
		}

		if snap.State == model.StateFinished {
			s.state = model.StateFinished
			if snap.FinishedAt != nil {
				t := *snap.FinishedAt
				s.finishedAt = &t
			}
			summary := Summarize(s.answers)
			if snap.Summary != nil {
				summary = *snap.Summary
			}
			s.summary = &summary
			return
		}

		s.state = model.StateRunning
		elapsed := int(s.now().Sub(snap.StartedAt) / time.Second)
		left := snap.DurationSeconds - elapsed
		if left <= 0 {
			s.finishLocked()
			return
		}
		s.startTimerLocked(left)
	})
	return nil
}
