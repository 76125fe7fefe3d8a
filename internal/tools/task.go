package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/HendryAvila/capstone-tracker/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- capstone_task_create ---

// TaskCreateTool handles the capstone_task_create MCP tool.
type TaskCreateTool struct {
	agg *progress.Aggregator
}

// NewTaskCreateTool creates a TaskCreateTool.
func NewTaskCreateTool(agg *progress.Aggregator) *TaskCreateTool {
	return &TaskCreateTool{agg: agg}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_task_create",
		mcp.WithDescription(
			"Create a task under a function. The function, its feature and linked milestones are recomputed.",
		),
		mcp.WithString("function_id",
			mcp.Required(),
			mcp.Description("Function the task belongs to"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("status",
			mcp.Description("Initial status. Defaults to the first not-started status of the policy."),
		),
		mcp.WithString("start_date",
			mcp.Description("Start date, YYYY-MM-DD"),
		),
		mcp.WithString("deadline",
			mcp.Description("Deadline, YYYY-MM-DD"),
		),
	)
}

// Handle processes the capstone_task_create tool call.
func (t *TaskCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fn, bad := requireString(req, "function_id")
	if bad != nil {
		return bad, nil
	}
	title, bad := requireString(req, "title")
	if bad != nil {
		return bad, nil
	}
	start, err := dateArg(req, "start_date")
	if err != nil {
		return toolError(err)
	}
	deadline, err := dateArg(req, "deadline")
	if err != nil {
		return toolError(err)
	}
	if start != nil && deadline != nil && deadline.Before(*start) {
		return mcp.NewToolResultError("deadline is before start_date"), nil
	}

	task, err := t.agg.CreateTask(ctx, store.TaskParams{
		FunctionID: domain.FunctionID(fn),
		Title:      title,
		Status:     domain.Status(req.GetString("status", "")),
		StartDate:  start,
		Deadline:   deadline,
	})
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Task created.\n\n**ID:** `%s`\n**Title:** %s\n**Status:** %s\n**Function:** `%s`\n**Dates:** %s → %s",
		task.ID, task.Title, task.Status, task.FunctionID, formatDate(task.StartDate), formatDate(task.Deadline),
	)), nil
}

// --- capstone_task_set_status ---

// TaskStatusTool handles the capstone_task_set_status MCP tool.
type TaskStatusTool struct {
	agg *progress.Aggregator
}

// NewTaskStatusTool creates a TaskStatusTool.
func NewTaskStatusTool(agg *progress.Aggregator) *TaskStatusTool {
	return &TaskStatusTool{agg: agg}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskStatusTool) Definition() mcp.Tool {
	statuses := t.agg.Policy().Statuses()
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return mcp.NewTool("capstone_task_set_status",
		mcp.WithDescription(
			"Set a task's status. Its function, feature and every milestone the feature is linked to "+
				"are recomputed and the new percentages are returned.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to update"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("New status"),
			mcp.Enum(values...),
		),
	)
}

// Handle processes the capstone_task_set_status tool call.
func (t *TaskStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireString(req, "task_id")
	if bad != nil {
		return bad, nil
	}
	status, bad := requireString(req, "status")
	if bad != nil {
		return bad, nil
	}
	res, err := t.agg.OnTaskStatusChanged(ctx, domain.TaskID(id), domain.Status(status))
	if err != nil {
		return toolError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Task `%s`: %s → %s\n\n", res.Task.ID, res.OldStatus, res.Task.Status)
	b.WriteString("| Entity | Status | Progress |\n")
	b.WriteString("|--------|--------|----------|\n")
	fmt.Fprintf(&b, "| Function `%s` | %s | %d%% |\n", res.Function.Ref.ID, res.Function.Status, res.Function.Percentage)
	fmt.Fprintf(&b, "| Feature `%s` | %s | %d%% |\n", res.Feature.Ref.ID, res.Feature.Status, res.Feature.Percentage)
	for _, m := range res.Milestones {
		fmt.Fprintf(&b, "| Milestone `%s` | — | %d%% |\n", m.MilestoneID, m.Percentage)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- capstone_task_remove ---

// TaskRemoveTool handles the capstone_task_remove MCP tool.
type TaskRemoveTool struct {
	agg *progress.Aggregator
}

// NewTaskRemoveTool creates a TaskRemoveTool.
func NewTaskRemoveTool(agg *progress.Aggregator) *TaskRemoveTool {
	return &TaskRemoveTool{agg: agg}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskRemoveTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_task_remove",
		mcp.WithDescription(
			"Delete a task. Every dependency touching it is removed and its function is recomputed.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to delete"),
		),
	)
}

// Handle processes the capstone_task_remove tool call.
func (t *TaskRemoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireString(req, "task_id")
	if bad != nil {
		return bad, nil
	}
	task, err := t.agg.RemoveTask(ctx, domain.TaskID(id))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task `%s` (%s) removed.", task.ID, task.Title)), nil
}
