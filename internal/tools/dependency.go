package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/capstone-tracker/internal/dependency"
	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// TaskGetter loads one task. The dependency tools use it to find the
// project a task belongs to.
type TaskGetter interface {
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
}

// edgeOptions are the arguments shared by validate and add.
func edgeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task the dependency is attached to"),
		),
		mcp.WithString("depends_on",
			mcp.Description("A task that must finish before task_id can start. Set this OR target."),
		),
		mcp.WithString("target",
			mcp.Description("A task that cannot start until task_id finishes. Set this OR depends_on."),
		),
	}
}

// edgeArgs resolves task_id plus depends_on/target into an edge.
func edgeArgs(ctx context.Context, tasks TaskGetter, req mcp.CallToolRequest) (domain.Task, domain.TaskID, domain.TaskID, *mcp.CallToolResult, error) {
	id, bad := requireString(req, "task_id")
	if bad != nil {
		return domain.Task{}, "", "", bad, nil
	}
	dependsOn := strings.TrimSpace(req.GetString("depends_on", ""))
	target := strings.TrimSpace(req.GetString("target", ""))
	if (dependsOn == "") == (target == "") {
		return domain.Task{}, "", "", mcp.NewToolResultError("set exactly one of 'depends_on' or 'target'"), nil
	}

	task, err := tasks.GetTask(ctx, domain.TaskID(id))
	if err != nil {
		res, err := toolError(err)
		return domain.Task{}, "", "", res, err
	}
	if dependsOn != "" {
		return task, domain.TaskID(dependsOn), task.ID, nil, nil
	}
	return task, task.ID, domain.TaskID(target), nil, nil
}

// --- capstone_dependency_list ---

// DependencyListTool handles the capstone_dependency_list MCP tool.
type DependencyListTool struct {
	deps *dependency.Service
}

// NewDependencyListTool creates a DependencyListTool.
func NewDependencyListTool(deps *dependency.Service) *DependencyListTool {
	return &DependencyListTool{deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *DependencyListTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_dependency_list",
		mcp.WithDescription(
			"List what a task is waiting on (dependencies) and what is waiting on it (dependents).",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to inspect"),
		),
	)
}

// Handle processes the capstone_dependency_list tool call.
func (t *DependencyListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireString(req, "task_id")
	if bad != nil {
		return bad, nil
	}
	listing, err := t.deps.List(ctx, domain.TaskID(id))
	if err != nil {
		return toolError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Dependencies of `%s`\n\n", listing.TaskID)
	writeLinks(&b, "Waiting on", listing.Dependencies)
	writeLinks(&b, "Blocking", listing.Dependents)
	return mcp.NewToolResultText(b.String()), nil
}

func writeLinks(b *strings.Builder, heading string, links []dependency.Link) {
	fmt.Fprintf(b, "## %s (%d)\n\n", heading, len(links))
	if len(links) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	for _, l := range links {
		fmt.Fprintf(b, "- `%s` %s [%s] (edge `%s`)\n", l.Task.ID, l.Task.Title, l.Task.Status, l.ID)
	}
	b.WriteString("\n")
}

// --- capstone_dependency_validate ---

// DependencyValidateTool handles the capstone_dependency_validate MCP tool.
// It never writes.
type DependencyValidateTool struct {
	tasks TaskGetter
	deps  *dependency.Service
}

// NewDependencyValidateTool creates a DependencyValidateTool.
func NewDependencyValidateTool(tasks TaskGetter, deps *dependency.Service) *DependencyValidateTool {
	return &DependencyValidateTool{tasks: tasks, deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *DependencyValidateTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Check whether a dependency could be added without creating a cycle. " +
				"Read-only: reports valid or the reason it would be rejected, including the cycle path.",
		),
	}, edgeOptions()...)
	return mcp.NewTool("capstone_dependency_validate", opts...)
}

// Handle processes the capstone_dependency_validate tool call.
func (t *DependencyValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, from, to, bad, err := edgeArgs(ctx, t.tasks, req)
	if bad != nil || err != nil {
		return bad, err
	}
	v, err := t.deps.Validate(ctx, task.ProjectID, from, to)
	if err != nil {
		return toolError(err)
	}
	if v.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("✅ `%s` → `%s` is a valid dependency.", from, to)), nil
	}
	text := fmt.Sprintf("❌ `%s` → `%s` would be rejected.\n\n**Reason:** %s\n**Detail:** %s", from, to, v.Reason, v.Message)
	if len(v.Path) > 0 {
		text += "\n**Cycle:** " + joinPath(v.Path)
	}
	return mcp.NewToolResultText(text), nil
}

// --- capstone_dependency_add ---

// DependencyAddTool handles the capstone_dependency_add MCP tool.
type DependencyAddTool struct {
	tasks TaskGetter
	deps  *dependency.Service
}

// NewDependencyAddTool creates a DependencyAddTool.
func NewDependencyAddTool(tasks TaskGetter, deps *dependency.Service) *DependencyAddTool {
	return &DependencyAddTool{tasks: tasks, deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *DependencyAddTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Add a finish-to-start dependency between two tasks of the same project. " +
				"Rejected if it would create a cycle, already exists, or links a task to itself.",
		),
	}, edgeOptions()...)
	return mcp.NewTool("capstone_dependency_add", opts...)
}

// Handle processes the capstone_dependency_add tool call.
func (t *DependencyAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, from, to, bad, err := edgeArgs(ctx, t.tasks, req)
	if bad != nil || err != nil {
		return bad, err
	}
	e, err := t.deps.Add(ctx, task.ProjectID, from, to)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Dependency added: `%s` must finish before `%s` starts.\n\n**Edge ID:** `%s`", e.From, e.To, e.ID,
	)), nil
}

// --- capstone_dependency_remove ---

// DependencyRemoveTool handles the capstone_dependency_remove MCP tool.
type DependencyRemoveTool struct {
	tasks TaskGetter
	deps  *dependency.Service
}

// NewDependencyRemoveTool creates a DependencyRemoveTool.
func NewDependencyRemoveTool(tasks TaskGetter, deps *dependency.Service) *DependencyRemoveTool {
	return &DependencyRemoveTool{tasks: tasks, deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *DependencyRemoveTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_dependency_remove",
		mcp.WithDescription("Remove a dependency by its edge ID."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Either task of the dependency"),
		),
		mcp.WithString("dependency_id",
			mcp.Required(),
			mcp.Description("Edge ID as shown by capstone_dependency_list"),
		),
	)
}

// Handle processes the capstone_dependency_remove tool call.
func (t *DependencyRemoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireString(req, "task_id")
	if bad != nil {
		return bad, nil
	}
	edgeID, bad := requireString(req, "dependency_id")
	if bad != nil {
		return bad, nil
	}
	task, err := t.tasks.GetTask(ctx, domain.TaskID(id))
	if err != nil {
		return toolError(err)
	}
	e, err := t.deps.RemoveForTask(ctx, task.ProjectID, task.ID, domain.EdgeID(edgeID))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Dependency `%s` removed (`%s` → `%s`).", e.ID, e.From, e.To)), nil
}
