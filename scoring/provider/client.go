// Package provider speaks the OpenAI chat-completions protocol against a
// llama.cpp-style local server, including its non-OpenAI liveness route and
// timing metadata.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/theimaginaryfoundation/density-scorer/scoring"
)

// Client implements scoring.Completer.
type Client struct {
	api       openai.Client
	model     string
	healthURL string
	http      *http.Client
}

// New builds a client for baseURL (ending in /v1). timeout bounds each
// attempt; the SDK's own retries are disabled so the retry policy stays
// with the classification client.
func New(baseURL, model string, timeout time.Duration) *Client {
	api := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("none"),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	)
	return &Client{
		api:       api,
		model:     model,
		healthURL: healthURL(baseURL),
		http:      &http.Client{Timeout: 5 * time.Second},
	}
}

// healthURL derives the server's liveness route: the /health endpoint lives
// beside /v1, not under it.
func healthURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.TrimSuffix(u, "/v1")
	return u + "/health"
}

// llamaTimings is the llama.cpp server's timing extension, carried outside
// the OpenAI response schema.
type llamaTimings struct {
	PredictedPerSecond float64 `json:"predicted_per_second"`
}

// Complete sends one chat-completion request and returns the raw generated
// text plus usage and timing metadata.
func (c *Client) Complete(ctx context.Context, req scoring.CompletionRequest) (scoring.Completion, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		MaxTokens:   openai.Int(req.MaxTokens),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return scoring.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return scoring.Completion{}, errors.New("completion response has no choices")
	}

	out := scoring.Completion{
		Text:             resp.Choices[0].Message.Content,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if f, ok := resp.JSON.ExtraFields["timings"]; ok {
		var t llamaTimings
		if err := json.Unmarshal([]byte(f.Raw()), &t); err == nil {
			out.TokensPerSecond = t.PredictedPerSecond
		}
	}
	return out, nil
}

// Health probes the liveness endpoint. Any transport failure, non-200
// status, or a status field other than "ok" is unhealthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("health check: decode: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("service unhealthy: status %q", health.Status)
	}
	return nil
}
