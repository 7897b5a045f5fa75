package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/examtrainer/internal/model"
)

const maxResponseBytes = 8 << 20

// Client reads subjects and questions from the question source service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Subjects lists the subject names.
func (c *Client) Subjects(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/subjects")
	if err != nil {
		return nil, err
	}
	var subjects []string
	if err := json.Unmarshal(body, &subjects); err != nil {
		return nil, fmt.Errorf("%w: subjects: %v", model.ErrMalformedResponse, err)
	}
	return subjects, nil
}

// Questions returns the practice question list of a subject.
func (c *Client) Questions(ctx context.Context, subject string) ([]model.Question, error) {
	body, err := c.get(ctx, "/questions/"+url.PathEscape(subject))
	if err != nil {
		return nil, err
	}
	if msg, ok := errorPayload(body); ok {
		return nil, &model.InvalidSubjectError{Message: msg}
	}
	var questions []model.Question
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, fmt.Errorf("%w: questions: %v", model.ErrMalformedResponse, err)
	}
	return questions, nil
}

// Exam returns an exam paper for a subject. An error payload from the
// service comes back as a paper with Error set, not as a Go error; the exam
// session decides what to do with it.
func (c *Client) Exam(ctx context.Context, subject string) (model.ExamPaper, error) {
	body, err := c.get(ctx, "/exam/"+url.PathEscape(subject))
	if err != nil {
		return model.ExamPaper{}, err
	}
	var paper model.ExamPaper
	if err := json.Unmarshal(body, &paper); err != nil {
		return model.ExamPaper{}, fmt.Errorf("%w: exam: %v", model.ErrMalformedResponse, err)
	}
	return paper, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", model.ErrNetworkFailure, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrNetworkFailure, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg, ok := errorPayload(body); ok {
			return nil, &model.InvalidSubjectError{Message: msg}
		}
		return nil, fmt.Errorf("%w: GET %s returned %s", model.ErrNetworkFailure, path, resp.Status)
	}
	return body, nil
}

// errorPayload extracts the message of an {"error": "..."} body.
func errorPayload(body []byte) (string, bool) {
	var p struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Error == nil {
		return "", false
	}
	return *p.Error, true
}
