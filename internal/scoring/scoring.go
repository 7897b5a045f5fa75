package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pavelanni/examtrainer/internal/model"
)

// Scorer checks a free-text answer against a question's checkpoints.
type Scorer interface {
	Check(ctx context.Context, text string, checkpoints []string) (model.CheckResult, error)
}

// Normalize converts a scorer reply into a CheckResult. Two wire shapes are
// accepted: {result, coverage} and the older {details, coverage, comment}.
// A missing or non-numeric coverage counts as 0; anything without a hit list
// is ErrMalformedResponse.
func Normalize(raw []byte) (model.CheckResult, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.CheckResult{}, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	field := "result"
	hitsRaw, ok := payload[field]
	if !ok {
		field = "details"
		hitsRaw, ok = payload[field]
	}
	if !ok {
		return model.CheckResult{}, fmt.Errorf("%w: no result or details field", model.ErrMalformedResponse)
	}
	if bytes.Equal(bytes.TrimSpace(hitsRaw), []byte("null")) {
		return model.CheckResult{}, fmt.Errorf("%w: %s is null", model.ErrMalformedResponse, field)
	}

	var hits []model.CheckpointHit
	if err := json.Unmarshal(hitsRaw, &hits); err != nil {
		return model.CheckResult{}, fmt.Errorf("%w: %s: %v", model.ErrMalformedResponse, field, err)
	}
	for i, h := range hits {
		if h.Checkpoint == "" {
			return model.CheckResult{}, fmt.Errorf("%w: %s[%d] has no checkpoint", model.ErrMalformedResponse, field, i)
		}
	}
	if hits == nil {
		hits = []model.CheckpointHit{}
	}

	return model.CheckResult{
		Coverage: parseCoverage(payload["coverage"]),
		Hits:     hits,
		Comments: parseComments(payload["comment"]),
	}, nil
}

func parseCoverage(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return int(math.Round(math.Min(math.Max(f, 0), 100)))
}

// parseComments accepts a list of strings or a single string.
func parseComments(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

// CoverageFromHits returns the share of hit checkpoints as a whole percentage.
func CoverageFromHits(hits []model.CheckpointHit) int {
	if len(hits) == 0 {
		return 0
	}
	n := 0
	for _, h := range hits {
		if h.Hit {
			n++
		}
	}
	return n * 100 / len(hits)
}
