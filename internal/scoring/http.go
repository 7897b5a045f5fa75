package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pavelanni/examtrainer/internal/model"
)

const maxResponseBytes = 1 << 20

// HTTPScorer calls a remote scoring service at <baseURL>/check.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPScorer.
type HTTPOption func(*HTTPScorer)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPScorer) { s.client = c }
}

// WithRateLimit caps outbound checks per second. Zero or less disables the cap.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(s *HTTPScorer) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// NewHTTPScorer creates a scorer for the service at baseURL.
func NewHTTPScorer(baseURL string, opts ...HTTPOption) *HTTPScorer {
	s := &HTTPScorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type checkRequest struct {
	Text string `json:"text"`
	// Older scoring services read the answer from notes.
	Notes       string   `json:"notes"`
	Checkpoints []string `json:"checkpoints"`
}

// Check implements Scorer.
func (s *HTTPScorer) Check(ctx context.Context, text string, checkpoints []string) (model.CheckResult, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return model.CheckResult{}, fmt.Errorf("%w: wait for scorer: %v", model.ErrNetworkFailure, err)
		}
	}
	if checkpoints == nil {
		checkpoints = []string{}
	}

	body, err := json.Marshal(checkRequest{Text: text, Notes: text, Checkpoints: checkpoints})
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("marshal check request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("build check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("%w: scorer call: %v", model.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("%w: read scorer response: %v", model.ErrNetworkFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.CheckResult{}, fmt.Errorf("%w: scorer returned %s", model.ErrNetworkFailure, resp.Status)
	}
	slog.Debug("scorer response", "status", resp.StatusCode, "raw", string(raw))

	res, err := Normalize(raw)
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("scorer response: %w", err)
	}
	return res, nil
}
