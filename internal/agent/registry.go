package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskflow/taskcore/internal/dateparse"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

// toolHandler dispatches one validated tool call against taskCore, running
// with ownerID as the principal (never escalated, per §4.6's safety
// paragraph). A returned *mcp.CallToolResult with IsError set is a
// domain-level failure fed back into the turn for the model to react to;
// a non-nil error is reserved for failures the turn cannot recover from.
type toolHandler func(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// toolSpec pairs a tool's schema with its handler. Grounded on the
// teacher's RegisterTools/handleXxx pairing in mcp/internal/handlers, but
// collected into a static in-process registry instead of being attached
// to a server.MCPServer: the tool surface here is consumed by LLMClient.Plan
// as a schema list, not served over MCP transport.
type toolSpec struct {
	tool    mcp.Tool
	handler toolHandler
}

// TaskCoreClient narrows *taskcore.Service to the operations the tool
// surface invokes, the same narrowing technique as recurrence.taskCoreClient
// and the teacher's services/vault_test.go fakes, so Registry's tests run
// against a hand-written fake instead of a real Store.
type TaskCoreClient interface {
	CreateTask(ctx context.Context, ownerID string, in taskcore.CreateTaskInput) (*model.Task, error)
	GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error)
	SearchTasks(ctx context.Context, ownerID, query string) ([]*model.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, partial model.TaskPartial) (*model.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	ToggleComplete(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	AddTag(ctx context.Context, ownerID, taskID, name string) error
	RemoveTag(ctx context.Context, ownerID, taskID, name string) error
	SetReminder(ctx context.Context, ownerID, taskID string, remindAt time.Time) (*model.Task, error)
}

// Registry is the bounded, enumerated tool surface §4.6 names. The agent
// MUST NOT invoke any operation outside it.
type Registry struct {
	taskCore TaskCoreClient
	specs    map[string]toolSpec
}

func NewRegistry(taskCore TaskCoreClient) *Registry {
	r := &Registry{taskCore: taskCore, specs: map[string]toolSpec{}}
	r.register()
	return r
}

// Tools returns the schema list to hand to LLMClient.Plan.
func (r *Registry) Tools() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(r.specs))
	for _, s := range r.specs {
		tools = append(tools, s.tool)
	}
	return tools
}

// Dispatch runs name with args against the ownerID principal. Tool
// containment: a name outside the registry is rejected here rather than
// reaching any TaskCore call.
func (r *Registry) Dispatch(ctx context.Context, ownerID, name string, args map[string]any) (*mcp.CallToolResult, error) {
	spec, ok := r.specs[name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("tool %q is not in the permitted tool surface", name)), nil
	}
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
	return spec.handler(ctx, ownerID, req)
}

func (r *Registry) add(tool mcp.Tool, h toolHandler) {
	r.specs[tool.Name] = toolSpec{tool: tool, handler: h}
}

func (r *Registry) register() {
	r.add(mcp.NewTool("add_task",
		mcp.WithDescription("Create a new task. due_date and remind_at accept natural-language expressions like 'tomorrow' or 'next Friday'."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("description", mcp.Description("Optional longer description")),
		mcp.WithString("priority", mcp.Description("low, medium, or high; default medium")),
		mcp.WithString("due_date", mcp.Description("Natural-language or absolute due date")),
		mcp.WithString("remind_at", mcp.Description("Natural-language or absolute reminder time")),
		mcp.WithString("recurrence", mcp.Description("none, daily, weekly, or monthly; default none")),
		mcp.WithArray("tags", mcp.Description("Optional list of tag names")),
	), r.handleAddTask)

	r.add(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all of the caller's tasks, most recently created first."),
	), r.handleListTasks)

	r.add(mcp.NewTool("filter_by_priority",
		mcp.WithDescription("List tasks at a given priority."),
		mcp.WithString("priority", mcp.Required(), mcp.Description("low, medium, or high")),
	), r.handleFilterByPriority)

	r.add(mcp.NewTool("filter_by_tag",
		mcp.WithDescription("List tasks carrying a given tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
	), r.handleFilterByTag)

	r.add(mcp.NewTool("show_overdue",
		mcp.WithDescription("List incomplete tasks whose due date has passed."),
	), r.handleShowOverdue)

	r.add(mcp.NewTool("search_tasks",
		mcp.WithDescription("Case-insensitive substring search over task title and description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), r.handleSearchTasks)

	r.add(mcp.NewTool("combined_filter",
		mcp.WithDescription("List tasks matching any combination of priority, tag, completed, and overdue."),
		mcp.WithString("priority", mcp.Description("low, medium, or high")),
		mcp.WithString("tag", mcp.Description("Tag name")),
		mcp.WithBoolean("completed", mcp.Description("Restrict to completed (true) or incomplete (false) tasks")),
		mcp.WithBoolean("overdue", mcp.Description("Restrict to overdue tasks")),
	), r.handleCombinedFilter)

	r.add(mcp.NewTool("sort_tasks",
		mcp.WithDescription("List all tasks sorted by a given key."),
		mcp.WithString("sort_by", mcp.Description("createdAt, updatedAt, dueAt, priority, or title; default createdAt")),
		mcp.WithBoolean("descending", mcp.Description("Sort descending; default false")),
	), r.handleSortTasks)

	r.add(mcp.NewTool("complete_task",
		mcp.WithDescription("Toggle a task's completed state. Identify the task by task_id or by title (case-insensitive substring match, must be unique)."),
		mcp.WithString("task_id", mcp.Description("Task id")),
		mcp.WithString("title", mcp.Description("Title or substring of the title")),
	), r.handleCompleteTask)

	r.add(mcp.NewTool("update_task",
		mcp.WithDescription("Update a task's title and/or description."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
	), r.handleUpdateTask)

	r.add(mcp.NewTool("set_priority",
		mcp.WithDescription("Set a task's priority."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("priority", mcp.Required(), mcp.Description("low, medium, or high")),
	), r.handleSetPriority)

	r.add(mcp.NewTool("set_due_date",
		mcp.WithDescription("Set a task's due date from a natural-language or absolute expression."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("due_date", mcp.Required(), mcp.Description("Natural-language or absolute due date")),
	), r.handleSetDueDate)

	r.add(mcp.NewTool("set_recurrence",
		mcp.WithDescription("Set a task's recurrence policy."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("recurrence", mcp.Required(), mcp.Description("none, daily, weekly, or monthly")),
	), r.handleSetRecurrence)

	r.add(mcp.NewTool("delete_task",
		mcp.WithDescription("Permanently delete a task."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
	), r.handleDeleteTask)

	r.add(mcp.NewTool("add_tag",
		mcp.WithDescription("Attach a tag to a task, creating the tag if it doesn't exist."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
	), r.handleAddTag)

	r.add(mcp.NewTool("remove_tag",
		mcp.WithDescription("Detach a tag from a task."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
	), r.handleRemoveTag)

	r.add(mcp.NewTool("set_reminder",
		mcp.WithDescription("Set a task's reminder time from a natural-language or absolute expression; must resolve strictly in the future."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("remind_at", mcp.Required(), mcp.Description("Natural-language or absolute reminder time")),
	), r.handleSetReminder)
}

func (r *Registry) handleAddTask(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := taskcore.CreateTaskInput{Title: title}
	if v, ok := req.GetArguments()["description"].(string); ok && v != "" {
		in.Description = &v
	}
	if v, ok := req.GetArguments()["priority"].(string); ok && v != "" {
		in.Priority = model.Priority(strings.ToLower(v))
	}
	if v, ok := req.GetArguments()["recurrence"].(string); ok && v != "" {
		in.Recurrence = model.Recurrence(strings.ToLower(v))
	}
	if v, ok := req.GetArguments()["due_date"].(string); ok && v != "" {
		t, err := dateparse.Parse(v, time.Now())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("due_date: %v", err)), nil
		}
		in.DueAt = &t
	}
	if v, ok := req.GetArguments()["remind_at"].(string); ok && v != "" {
		t, err := dateparse.Parse(v, time.Now())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("remind_at: %v", err)), nil
		}
		in.RemindAt = &t
	}
	if raw, ok := req.GetArguments()["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				in.Tags = append(in.Tags, s)
			}
		}
	}

	task, err := r.taskCore.CreateTask(ctx, ownerID, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

func (r *Registry) handleListTasks(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, model.TaskFilter{SortKey: model.SortCreatedAt, SortDesc: true})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (r *Registry) handleFilterByPriority(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	priority, err := req.RequireString("priority")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := model.Priority(strings.ToLower(priority))
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, model.TaskFilter{Priority: &p})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (r *Registry) handleFilterByTag(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, model.TaskFilter{Tag: &tag})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (r *Registry) handleShowOverdue(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, model.TaskFilter{Overdue: true, SortKey: model.SortDueAt})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (r *Registry) handleSearchTasks(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tasks, err := r.taskCore.SearchTasks(ctx, ownerID, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (r *Registry) handleCombinedFilter(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := model.TaskFilter{SortKey: model.SortCreatedAt, SortDesc: true}
	if v, ok := req.GetArguments()["priority"].(string); ok && v != "" {
		p := model.Priority(strings.ToLower(v))
		filter.Priority = &p
	}
	if v, ok := req.GetArguments()["tag"].(string); ok && v != "" {
		filter.Tag = &v
	}
	if v, ok := req.GetArguments()["completed"].(bool); ok {
		filter.Completed = &v
	}
	if v, ok := req.GetArguments()["overdue"].(bool); ok {
		filter.Overdue = v
	}
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (r *Registry) handleSortTasks(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := model.TaskFilter{SortKey: model.SortCreatedAt}
	if v, ok := req.GetArguments()["sort_by"].(string); ok && v != "" {
		filter.SortKey = model.SortKey(v)
	}
	if v, ok := req.GetArguments()["descending"].(bool); ok {
		filter.SortDesc = v
	}
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

// handleCompleteTask resolves the target task by id, or by a unique
// case-insensitive title substring match, per §4.6's complete_task contract.
func (r *Registry) handleCompleteTask(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, _ := req.GetArguments()["task_id"].(string)
	title, _ := req.GetArguments()["title"].(string)

	resolved, err := r.resolveTaskID(ctx, ownerID, taskID, title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := r.taskCore.ToggleComplete(ctx, ownerID, resolved)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

// resolveTaskID returns taskID directly if set, otherwise finds the one
// task whose title contains title (case-insensitive); ambiguous or
// absent matches are reported as tool errors asking for disambiguation.
func (r *Registry) resolveTaskID(ctx context.Context, ownerID, taskID, title string) (string, error) {
	if taskID != "" {
		return taskID, nil
	}
	if title == "" {
		return "", fmt.Errorf("either task_id or title is required")
	}
	tasks, err := r.taskCore.ListTasks(ctx, ownerID, model.TaskFilter{})
	if err != nil {
		return "", err
	}
	needle := strings.ToLower(title)
	var matches []*model.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no task matches title %q", title)
	case 1:
		return matches[0].TaskID, nil
	default:
		titles := make([]string, len(matches))
		for i, m := range matches {
			titles[i] = m.Title
		}
		return "", fmt.Errorf("title %q matches %d tasks (%s); disambiguate with task_id", title, len(matches), strings.Join(titles, ", "))
	}
}

func (r *Registry) handleUpdateTask(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var partial model.TaskPartial
	if v, ok := req.GetArguments()["title"].(string); ok && v != "" {
		partial.Title = &v
	}
	if v, ok := req.GetArguments()["description"].(string); ok && v != "" {
		partial.Description = &v
	}
	task, err := r.taskCore.UpdateTask(ctx, ownerID, taskID, partial)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

func (r *Registry) handleSetPriority(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	priority, err := req.RequireString("priority")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := model.Priority(strings.ToLower(priority))
	task, err := r.taskCore.UpdateTask(ctx, ownerID, taskID, model.TaskPartial{Priority: &p})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

func (r *Registry) handleSetDueDate(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dueDate, err := req.RequireString("due_date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := dateparse.Parse(dueDate, time.Now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := r.taskCore.UpdateTask(ctx, ownerID, taskID, model.TaskPartial{DueAt: &t})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

func (r *Registry) handleSetRecurrence(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recurrence, err := req.RequireString("recurrence")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec := model.Recurrence(strings.ToLower(recurrence))
	task, err := r.taskCore.UpdateTask(ctx, ownerID, taskID, model.TaskPartial{Recurrence: &rec})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

func (r *Registry) handleDeleteTask(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := r.taskCore.DeleteTask(ctx, ownerID, taskID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted task %s", taskID)), nil
}

func (r *Registry) handleAddTag(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := r.taskCore.AddTag(ctx, ownerID, taskID, tag); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("tagged task %s with %q", taskID, tag)), nil
}

func (r *Registry) handleRemoveTag(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := r.taskCore.RemoveTag(ctx, ownerID, taskID, tag); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed tag %q from task %s", tag, taskID)), nil
}

func (r *Registry) handleSetReminder(ctx context.Context, ownerID string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	remindAt, err := req.RequireString("remind_at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := dateparse.Parse(remindAt, time.Now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := r.taskCore.SetReminder(ctx, ownerID, taskID, t)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
