package trainer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavelanni/examtrainer/internal/model"
)

// Metrics counts exam activity. A nil *Metrics records nothing.
type Metrics struct {
	answers         *prometheus.CounterVec
	examsFinished   prometheus.Counter
	scoringFailures *prometheus.CounterVec
	examAverage     prometheus.Histogram
}

// NewMetrics creates the trainer metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examtrainer_answers_total",
				Help: "Exam answer submissions by outcome",
			},
			[]string{"outcome"},
		),
		examsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examtrainer_exams_finished_total",
			Help: "Exams finished explicitly or by the timer",
		}),
		scoringFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examtrainer_scoring_failures_total",
				Help: "Failed calls to the scoring service by kind",
			},
			[]string{"kind"},
		),
		examAverage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examtrainer_exam_average_coverage",
			Help:    "Average coverage of finished exams",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
	}
	reg.MustRegister(m.answers, m.examsFinished, m.scoringFailures, m.examAverage)
	return m
}

func (m *Metrics) answer(err error) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) scoringFailure(err error) {
	if m == nil {
		return
	}
	kind := "other"
	switch {
	case errors.Is(err, model.ErrNetworkFailure):
		kind = "network"
	case errors.Is(err, model.ErrMalformedResponse):
		kind = "malformed"
	}
	m.scoringFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) finished(summary model.ExamSummary) {
	if m == nil {
		return
	}
	m.examsFinished.Inc()
	m.examAverage.Observe(float64(summary.Average))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, model.ErrEmptyAnswer):
		return "empty"
	case errors.Is(err, model.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, model.ErrNotRunning):
		return "not_running"
	case errors.Is(err, model.ErrUnknownQuestion):
		return "unknown_question"
	case errors.Is(err, model.ErrNetworkFailure), errors.Is(err, model.ErrMalformedResponse):
		return "scoring_failed"
	default:
		return "error"
	}
}
