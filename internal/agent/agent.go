// Package agent implements the single user-authenticated turn-taking
// loop that translates a user utterance into zero or more TaskCore tool
// invocations and produces one assistant reply per turn.
package agent

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

const defaultMaxIterations = 8

// Agent runs one turn at a time against a bounded tool surface. Grounded
// structurally on the teacher's mcp/server.go RunMCPServer wiring
// (handlers registered against a shared client, dispatched by name), with
// the MCP transport loop replaced by an in-process Plan/Dispatch loop
// driven by LLMClient.
type Agent struct {
	conversations *taskcore.ConversationService
	registry      *Registry
	llm           LLMClient
	maxIterations int
	log           zerolog.Logger
}

func New(conversations *taskcore.ConversationService, registry *Registry, llm LLMClient, log zerolog.Logger) *Agent {
	return &Agent{conversations: conversations, registry: registry, llm: llm, maxIterations: defaultMaxIterations, log: log}
}

// WithMaxIterations overrides the default bounded iteration count.
func (a *Agent) WithMaxIterations(n int) *Agent {
	if n > 0 {
		a.maxIterations = n
	}
	return a
}

// HandleTurn runs the Receive/Plan/Dispatch/Loop/Commit state machine for
// one user utterance and returns the committed assistant reply. Only the
// user message and the final assistant message are committed to Store
// (§4.6's "Commit" step); intermediate tool calls and their results live
// only in the in-memory transcript passed to each Plan call.
func (a *Agent) HandleTurn(ctx context.Context, ownerID, conversationID, userMessage string) (*model.Message, error) {
	if _, err := a.conversations.AppendMessage(ctx, conversationID, model.RoleUser, userMessage); err != nil {
		return nil, fmt.Errorf("commit user message: %w", err)
	}

	history, err := a.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	transcript := make([]model.Message, 0, len(history))
	for _, m := range history {
		transcript = append(transcript, *m)
	}

	tools := a.registry.Tools()
	var finalReply string

	for i := 0; i < a.maxIterations; i++ {
		plan, err := a.llm.Plan(ctx, transcript, tools)
		if err != nil {
			return nil, fmt.Errorf("plan turn: %w", err)
		}
		if len(plan.ToolCalls) == 0 {
			finalReply = plan.FinalMessage
			break
		}

		for _, call := range plan.ToolCalls {
			result, isError := a.dispatch(ctx, ownerID, call)
			transcript = append(transcript, model.Message{
				Role:    model.RoleAssistant,
				Content: renderToolTrace(call.Name, result, isError),
			})
		}
	}

	if finalReply == "" {
		finalReply = fmt.Sprintf("I couldn't complete that request within %d tool calls.", a.maxIterations)
	}

	if err := a.conversations.SetTitleIfAbsent(ctx, ownerID, conversationID, userMessage); err != nil {
		a.log.Warn().Err(err).Str("conversationId", conversationID).Msg("set conversation title failed")
	}
	return a.conversations.AppendMessage(ctx, conversationID, model.RoleAssistant, finalReply)
}

// dispatch runs one tool call and renders its result as plain text.
// A domain error and an unexpected failure both feed back into the
// transcript the same way, per §4.6's "append tool result to the
// transcript".
func (a *Agent) dispatch(ctx context.Context, ownerID string, call ToolCall) (string, bool) {
	result, err := a.registry.Dispatch(ctx, ownerID, call.Name, call.Arguments)
	if err != nil {
		return err.Error(), true
	}
	return resultText(result), result.IsError
}

func resultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	return ""
}

func renderToolTrace(name, result string, isError bool) string {
	if isError {
		return fmt.Sprintf("tool %s failed: %s", name, result)
	}
	return fmt.Sprintf("tool %s returned: %s", name, result)
}
