package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pavelanni/examtrainer/internal/i18n"
	"github.com/pavelanni/examtrainer/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type fakeTrainer struct {
	err       error
	subjects  []string
	questions []model.Question
	result    model.CheckResult
	record    model.AnswerRecord
	summary   model.ExamSummary
	status    model.ExamStatus

	gotSubject string
	gotRestart bool
	gotID      model.QuestionID
	gotText    string
}

func (f *fakeTrainer) Subjects(context.Context) ([]string, error) { return f.subjects, f.err }

func (f *fakeTrainer) LoadSubject(_ context.Context, subject string) ([]model.Question, error) {
	f.gotSubject = subject
	return f.questions, f.err
}

func (f *fakeTrainer) CheckPractice(_ context.Context, id model.QuestionID, text string) (model.CheckResult, error) {
	f.gotID, f.gotText = id, text
	return f.result, f.err
}

func (f *fakeTrainer) StartExam(_ context.Context, subject string, restart bool) (model.ExamStatus, error) {
	f.gotSubject, f.gotRestart = subject, restart
	return f.status, f.err
}

func (f *fakeTrainer) Answer(_ context.Context, id model.QuestionID, text string) (model.AnswerRecord, error) {
	f.gotID, f.gotText = id, text
	return f.record, f.err
}

func (f *fakeTrainer) Finish() (model.ExamSummary, error) { return f.summary, f.err }

func (f *fakeTrainer) Status() model.ExamStatus { return f.status }

func newTestRouter(t *testing.T, ft *fakeTrainer) (http.Handler, *HTTPMetrics) {
	t.Helper()
	metrics := NewHTTPMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	r.Use(metrics.Middleware)
	New(ft).Routes(r)
	return r, metrics
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestSubjects(t *testing.T) {
	ft := &fakeTrainer{subjects: []string{"Computer Networks"}}
	h, _ := newTestRouter(t, ft)

	w := do(t, h, http.MethodGet, "/api/subjects", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decodeBody[[]string](t, w)
	if len(got) != 1 || got[0] != "Computer Networks" {
		t.Errorf("subjects = %v", got)
	}

	ft.subjects = nil
	w = do(t, h, http.MethodGet, "/api/subjects", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty subjects body = %q, want []", w.Body.String())
	}
}

func TestLoadSubject(t *testing.T) {
	ft := &fakeTrainer{questions: []model.Question{{ID: "1", Title: "OSI"}}}
	h, _ := newTestRouter(t, ft)

	w := do(t, h, http.MethodPost, "/api/subjects/Computer%20Networks/load", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	got := decodeBody[subjectResponse](t, w)
	if len(got.Questions) != 1 || got.Questions[0].Title != "OSI" {
		t.Errorf("response = %+v", got)
	}
	if ft.gotSubject == "" {
		t.Error("subject not passed to trainer")
	}
}

func TestPracticeCheck(t *testing.T) {
	ft := &fakeTrainer{result: model.CheckResult{Coverage: 50, Hits: []model.CheckpointHit{{Checkpoint: "a", Hit: true}, {Checkpoint: "b"}}}}
	h, _ := newTestRouter(t, ft)

	w := do(t, h, http.MethodPost, "/api/practice/check", `{"questionId": 7, "text": "my answer"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if ft.gotID != "7" || ft.gotText != "my answer" {
		t.Errorf("trainer got id=%q text=%q", ft.gotID, ft.gotText)
	}
	got := decodeBody[model.CheckResult](t, w)
	if got.Coverage != 50 || len(got.Hits) != 2 {
		t.Errorf("result = %+v", got)
	}
}

func TestStartExam(t *testing.T) {
	ft := &fakeTrainer{status: model.ExamStatus{ID: "e1", State: model.StateRunning, Remaining: "03:00:00"}}
	h, _ := newTestRouter(t, ft)

	w := do(t, h, http.MethodPost, "/api/exam/start", `{"subject": "Computer Networks", "restart": true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if ft.gotSubject != "Computer Networks" || !ft.gotRestart {
		t.Errorf("trainer got subject=%q restart=%v", ft.gotSubject, ft.gotRestart)
	}

	ft.gotSubject = "unchanged"
	w = do(t, h, http.MethodPost, "/api/exam/start", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("start without body: status = %d: %s", w.Code, w.Body)
	}
	if ft.gotSubject != "" {
		t.Errorf("start without body passed subject %q", ft.gotSubject)
	}

	// An empty chunked body has no declared length.
	ft.gotSubject = "unchanged"
	req := httptest.NewRequest(http.MethodPost, "/api/exam/start", strings.NewReader(""))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("start with empty chunked body: status = %d: %s", w.Code, w.Body)
	}
	if ft.gotSubject != "" || ft.gotRestart {
		t.Errorf("empty chunked body passed subject=%q restart=%v", ft.gotSubject, ft.gotRestart)
	}

	w = do(t, h, http.MethodPost, "/api/exam/start", `{"subject": `)
	if w.Code != http.StatusBadRequest {
		t.Errorf("truncated body: status = %d, want 400", w.Code)
	}
}

func TestAnswerAndFinish(t *testing.T) {
	ft := &fakeTrainer{
		record: model.AnswerRecord{Block: model.BlockA, QuestionID: "1", Coverage: 90},
		status: model.ExamStatus{Answers: []model.AnswerRecord{{}, {}}},
		summary: model.ExamSummary{
			Average:  90,
			Answered: 2,
			Missed:   []model.CheckpointTally{{Checkpoint: "arp", Count: 2}, {Checkpoint: "dns", Count: 1}},
		},
	}
	h, _ := newTestRouter(t, ft)

	w := do(t, h, http.MethodPost, "/api/exam/answers", `{"questionId": "1", "text": "answer"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	ar := decodeBody[answerResponse](t, w)
	if ar.Answer.Coverage != 90 || ar.Message != "2 answers recorded." {
		t.Errorf("answer response = %+v", ar)
	}

	w = do(t, h, http.MethodPost, "/api/exam/finish", "")
	if w.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", w.Code, w.Body)
	}
	fr := decodeBody[finishResponse](t, w)
	if fr.Summary.Average != 90 || len(fr.Review) != 2 || fr.Review[0] != "arp" {
		t.Errorf("finish response = %+v", fr)
	}

	w = do(t, h, http.MethodGet, "/api/exam", "")
	if w.Code != http.StatusOK {
		t.Errorf("status endpoint = %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"empty", model.ErrEmptyAnswer, http.StatusUnprocessableEntity, "empty_answer", "Write an answer before checking it."},
		{"quota", &model.QuotaExceededError{Block: model.BlockB, Quota: 2}, http.StatusConflict, "quota_exceeded", "Block B is full: only 2 answers are allowed in this block."},
		{"not running", model.ErrNotRunning, http.StatusConflict, "not_running", "No exam is running. Start an exam first."},
		{"already running", model.ErrAlreadyRunning, http.StatusConflict, "already_running", "An exam is already running. Finish it or restart."},
		{"unknown question", fmt.Errorf("%w: 9", model.ErrUnknownQuestion), http.StatusNotFound, "unknown_question", "This question is not part of the current exam or subject."},
		{"invalid subject", &model.InvalidSubjectError{Message: "no such subject"}, http.StatusUnprocessableEntity, "invalid_subject", "The subject cannot be used: no such subject"},
		{"malformed", fmt.Errorf("%w: bad", model.ErrMalformedResponse), http.StatusBadGateway, "malformed_response", "The scoring service returned a response that could not be read."},
		{"network", fmt.Errorf("%w: refused", model.ErrNetworkFailure), http.StatusServiceUnavailable, "network_failure", "Could not reach the server. Check your connection and try again."},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal", "Something went wrong on our side."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, &fakeTrainer{err: tt.err})
			w := do(t, h, http.MethodPost, "/api/exam/answers", `{"questionId": "1", "text": "x"}`)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			got := decodeBody[errorResponse](t, w)
			if got.Error.Code != tt.wantCode || got.Error.Message != tt.wantMsg {
				t.Errorf("error = %+v, want code %q message %q", got.Error, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestQuotaErrorCarriesBlock(t *testing.T) {
	h, _ := newTestRouter(t, &fakeTrainer{err: &model.QuotaExceededError{Block: model.BlockC, Quota: 1}})
	w := do(t, h, http.MethodPost, "/api/exam/answers", `{"questionId": "1", "text": "x"}`)
	got := decodeBody[errorResponse](t, w)
	if got.Error.Block != "C" || got.Error.Quota != 1 {
		t.Errorf("error = %+v, want block C quota 1", got.Error)
	}
}

func TestLocalizedErrors(t *testing.T) {
	h, _ := newTestRouter(t, &fakeTrainer{err: model.ErrEmptyAnswer})
	w := do(t, h, http.MethodPost, "/api/exam/answers", `{"questionId": "1", "text": ""}`, "Accept-Language", "ru")
	got := decodeBody[errorResponse](t, w)
	if got.Error.Message != "Напишите ответ перед проверкой." {
		t.Errorf("message = %q, want Russian translation", got.Error.Message)
	}
}

func TestBadRequest(t *testing.T) {
	h, _ := newTestRouter(t, &fakeTrainer{})
	for _, body := range []string{`{not json`, `{"questionId": true}`} {
		w := do(t, h, http.MethodPost, "/api/exam/answers", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
		got := decodeBody[errorResponse](t, w)
		if got.Error.Code != "bad_request" {
			t.Errorf("body %q: code = %q", body, got.Error.Code)
		}
	}
}

func TestHTTPMetrics(t *testing.T) {
	h, metrics := newTestRouter(t, &fakeTrainer{err: model.ErrNotRunning})
	do(t, h, http.MethodPost, "/api/exam/finish", "")
	do(t, h, http.MethodPost, "/api/exam/finish", "")
	do(t, h, http.MethodGet, "/api/exam", "")

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("POST", "/api/exam/finish", "409")); got != 2 {
		t.Errorf("finish requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/api/exam", "200")); got != 1 {
		t.Errorf("status requests = %v, want 1", got)
	}
}
