package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskflow/taskcore/internal/model"
)

// RetryConfig bounds the backoff applied to one Plan call. Grounded on
// notify.Worker.sendWithRetry's exponential-backoff loop.
type RetryConfig struct {
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	return c
}

// planRequest/planResponse are the wire shapes HTTPLLMClient exchanges
// with the configured model endpoint. The schema is this client's own —
// the spec names only the capability ("turn a conversation plus the
// bounded tool surface into the next planning decision"), not a wire
// format, so messages/tools/toolCalls mirror PlanResult/ToolCall/
// model.Message directly rather than inventing a richer protocol.
type planRequest struct {
	Model    string          `json:"model"`
	Messages []model.Message `json:"messages"`
	Tools    []mcp.Tool      `json:"tools"`
}

type planResponse struct {
	Message   string             `json:"message"`
	ToolCalls []planResponseCall `json:"toolCalls"`
}

type planResponseCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// HTTPLLMClient is the concrete LLMClient backing cmd/agent-gateway.
// Grounded on the teacher's indexer-prototype.OllamaProvider: a
// resty.Client with a fixed base URL, one POST per call, JSON body in
// and out. Transient/permanent classification and the retry loop around
// it mirror notify.Worker.sendWithRetry.
type HTTPLLMClient struct {
	client *resty.Client
	model  string
	retry  RetryConfig
}

func NewHTTPLLMClient(baseURL, model string, retry RetryConfig) *HTTPLLMClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &HTTPLLMClient{client: c, model: model, retry: retry.withDefaults()}
}

func (c *HTTPLLMClient) Plan(ctx context.Context, history []model.Message, tools []mcp.Tool) (PlanResult, error) {
	req := planRequest{Model: c.model, Messages: history, Tools: tools}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retry.BaseInterval
	exp.MaxInterval = c.retry.MaxInterval
	exp.Reset()

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		resp, err := c.doPlan(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, model.ErrUpstreamPermanent) {
			return PlanResult{}, lastErr
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return PlanResult{}, ctx.Err()
		case <-time.After(exp.NextBackOff()):
		}
	}
	return PlanResult{}, lastErr
}

func (c *HTTPLLMClient) doPlan(ctx context.Context, req planRequest) (PlanResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&req).
		Post("/v1/plan")
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan request: %w", model.ErrUpstreamTransient)
	}

	switch {
	case resp.StatusCode() >= 200 && resp.StatusCode() < 300:
	case resp.StatusCode() == 429 || resp.StatusCode() >= 500:
		return PlanResult{}, fmt.Errorf("plan endpoint returned %d: %w", resp.StatusCode(), model.ErrUpstreamTransient)
	default:
		return PlanResult{}, fmt.Errorf("plan endpoint returned %d: %w", resp.StatusCode(), model.ErrUpstreamPermanent)
	}

	var decoded planResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return PlanResult{}, fmt.Errorf("decode plan response: %w", err)
	}

	calls := make([]ToolCall, 0, len(decoded.ToolCalls))
	for _, c := range decoded.ToolCalls {
		calls = append(calls, ToolCall{Name: c.Name, Arguments: c.Arguments})
	}
	return PlanResult{FinalMessage: decoded.Message, ToolCalls: calls}, nil
}
