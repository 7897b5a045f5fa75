package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/examtrainer/internal/i18n"
	"github.com/pavelanni/examtrainer/internal/model"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Block   string `json:"block,omitempty"`
	Quota   int    `json:"quota,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError maps err to a status, a stable error code and a localized
// message. Codes are unique per error kind; statuses may be shared.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		status int
		body   errorBody
		qe     *model.QuotaExceededError
		se     *model.InvalidSubjectError
	)
	switch {
	case errors.Is(err, errBadRequest):
		status, body.Code = http.StatusBadRequest, "bad_request"
		body.Message = i18n.T(ctx, "BadRequest")
	case errors.Is(err, model.ErrEmptyAnswer):
		status, body.Code = http.StatusUnprocessableEntity, "empty_answer"
		body.Message = i18n.T(ctx, "EmptyAnswer")
	case errors.As(err, &qe):
		status, body.Code = http.StatusConflict, "quota_exceeded"
		body.Block, body.Quota = string(qe.Block), qe.Quota
		body.Message = i18n.Td(ctx, "QuotaExceeded", map[string]any{"Block": string(qe.Block), "Quota": qe.Quota})
	case errors.Is(err, model.ErrNotRunning):
		status, body.Code = http.StatusConflict, "not_running"
		body.Message = i18n.T(ctx, "NotRunning")
	case errors.Is(err, model.ErrAlreadyRunning):
		status, body.Code = http.StatusConflict, "already_running"
		body.Message = i18n.T(ctx, "AlreadyRunning")
	case errors.Is(err, model.ErrUnknownQuestion):
		status, body.Code = http.StatusNotFound, "unknown_question"
		body.Message = i18n.T(ctx, "UnknownQuestion")
	case errors.As(err, &se):
		status, body.Code = http.StatusUnprocessableEntity, "invalid_subject"
		body.Message = i18n.Td(ctx, "InvalidSubject", map[string]any{"Reason": se.Message})
	case errors.Is(err, model.ErrMalformedResponse):
		status, body.Code = http.StatusBadGateway, "malformed_response"
		body.Message = i18n.T(ctx, "MalformedResponse")
	case errors.Is(err, model.ErrNetworkFailure):
		status, body.Code = http.StatusServiceUnavailable, "network_failure"
		body.Message = i18n.T(ctx, "NetworkFailure")
	default:
		status, body.Code = http.StatusInternalServerError, "internal"
		body.Message = i18n.T(ctx, "InternalError")
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	}
	if status < http.StatusInternalServerError {
		slog.Debug("request rejected", "path", r.URL.Path, "code", body.Code, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: body})
}
