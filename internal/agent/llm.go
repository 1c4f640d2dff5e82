package agent

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskflow/taskcore/internal/model"
)

// ToolCall is one tool invocation LLMClient.Plan asks the agent to
// dispatch. Arguments is decoded JSON (the shape mcp.CallToolParams.
// Arguments already uses), not a raw string, so the registry never
// re-parses anything the client produced.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// PlanResult is LLMClient.Plan's response for one planning step: either a
// final assistant message, or tool calls to dispatch before planning
// again, never both, per §4.6's "Plan" step.
type PlanResult struct {
	FinalMessage string
	ToolCalls    []ToolCall
}

// LLMClient is the outbound capability that turns a conversation plus the
// bounded tool surface into the next planning decision. Grounded on the
// teacher's indexer-prototype.Embedder shape: a single-method capability
// interface an HTTP-backed implementation satisfies, narrow enough that
// tests fake it without a real model endpoint.
type LLMClient interface {
	Plan(ctx context.Context, history []model.Message, tools []mcp.Tool) (PlanResult, error)
}
