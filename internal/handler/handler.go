package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examtrainer/internal/i18n"
	"github.com/pavelanni/examtrainer/internal/model"
)

const maxBodyBytes = 1 << 20

// Trainer is the exam trainer service behind the API.
type Trainer interface {
	Subjects(ctx context.Context) ([]string, error)
	LoadSubject(ctx context.Context, subject string) ([]model.Question, error)
	CheckPractice(ctx context.Context, questionID model.QuestionID, text string) (model.CheckResult, error)
	StartExam(ctx context.Context, subject string, restart bool) (model.ExamStatus, error)
	Answer(ctx context.Context, questionID model.QuestionID, text string) (model.AnswerRecord, error)
	Finish() (model.ExamSummary, error)
	Status() model.ExamStatus
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	trainer Trainer
}

// New creates a new Handler.
func New(t Trainer) *Handler {
	return &Handler{trainer: t}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/subjects", h.handleSubjects)
		r.Post("/subjects/{subject}/load", h.handleLoadSubject)
		r.Post("/practice/check", h.handlePracticeCheck)
		r.Post("/exam/start", h.handleStartExam)
		r.Get("/exam", h.handleStatus)
		r.Post("/exam/answers", h.handleAnswer)
		r.Post("/exam/finish", h.handleFinish)
	})
}

type answerRequest struct {
	QuestionID model.QuestionID `json:"questionId"`
	Text       string           `json:"text"`
}

type startRequest struct {
	Subject string `json:"subject"`
	Restart bool   `json:"restart"`
}

type subjectResponse struct {
	Subject   string           `json:"subject"`
	Questions []model.Question `json:"questions"`
}

type answerResponse struct {
	Answer  model.AnswerRecord `json:"answer"`
	Message string             `json:"message"`
}

type finishResponse struct {
	Summary model.ExamSummary `json:"summary"`
	Review  []string          `json:"review"`
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.trainer.Subjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) handleLoadSubject(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	questions, err := h.trainer.LoadSubject(r.Context(), subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, subjectResponse{Subject: subject, Questions: questions})
}

func (h *Handler) handlePracticeCheck(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.trainer.CheckPractice(r.Context(), req.QuestionID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	st, err := h.trainer.StartExam(r.Context(), req.Subject, req.Restart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.trainer.Status())
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.trainer.Answer(r.Context(), req.QuestionID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	answered := len(h.trainer.Status().Answers)
	writeJSON(w, http.StatusOK, answerResponse{
		Answer:  rec,
		Message: i18n.Tp(r.Context(), "AnswersRecorded", answered),
	})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	summary, err := h.trainer.Finish()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse{Summary: summary, Review: summary.ReviewList()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeRequest(w, r, v, false)
}

// decodeOptional is decode for requests whose body may be omitted, whether
// sent with a zero length or as an empty chunked stream.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeRequest(w, r, v, true)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		slog.Debug("bad request body", "path", r.URL.Path, "error", err)
		writeError(w, r, errBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

var errBadRequest = errors.New("bad request")
