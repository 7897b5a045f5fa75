package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examtrainer/internal/llm/prompts"
	"github.com/pavelanni/examtrainer/internal/model"
	"github.com/pavelanni/examtrainer/internal/scoring"
)

// Client scores answers with an OpenAI-compatible chat model.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM scorer. An empty variant means prompts.Standard.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if variant == "" {
		variant = string(prompts.Standard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q (want strict, standard or lenient)", variant)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.Variant(variant),
	}, nil
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: list models: %v", model.ErrNetworkFailure, err)
	}
	return nil
}

// Check implements scoring.Scorer.
func (c *Client) Check(ctx context.Context, text string, checkpoints []string) (model.CheckResult, error) {
	prompt, err := prompts.BuildCheckPrompt(c.variant, text, checkpoints)
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("%w: LLM API call: %v", model.ErrNetworkFailure, err)
	}
	if len(resp.Choices) == 0 {
		return model.CheckResult{}, fmt.Errorf("%w: LLM returned no choices", model.ErrMalformedResponse)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	result, err := scoring.Normalize([]byte(raw))
	if err != nil {
		return model.CheckResult{}, err
	}

	result.Hits = alignHits(checkpoints, result.Hits)
	if !hasCoverage(raw) {
		result.Coverage = scoring.CoverageFromHits(result.Hits)
	}
	return result, nil
}

// alignHits returns one entry per requested checkpoint in request order.
// Checkpoints the model skipped are reported as missed; extra ones are dropped.
func alignHits(checkpoints []string, hits []model.CheckpointHit) []model.CheckpointHit {
	byText := make(map[string]bool, len(hits))
	for _, h := range hits {
		key := normalizeKey(h.Checkpoint)
		byText[key] = byText[key] || h.Hit
	}
	out := make([]model.CheckpointHit, 0, len(checkpoints))
	for _, cp := range checkpoints {
		out = append(out, model.CheckpointHit{Checkpoint: cp, Hit: byText[normalizeKey(cp)]})
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func hasCoverage(raw string) bool {
	var peek struct {
		Coverage json.RawMessage `json:"coverage"`
	}
	if err := json.Unmarshal([]byte(raw), &peek); err != nil {
		return false
	}
	return len(peek.Coverage) > 0 && string(peek.Coverage) != "null"
}
