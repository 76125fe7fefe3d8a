package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
	"github.com/HendryAvila/capstone-tracker/internal/report"
	"github.com/mark3labs/mcp-go/mcp"
)

func projectOption() mcp.ToolOption {
	return mcp.WithString("project_id",
		mcp.Required(),
		mcp.Description("Project ID"),
	)
}

// --- capstone_gantt_tasks ---

// GanttTasksTool handles the capstone_gantt_tasks MCP tool.
type GanttTasksTool struct {
	asm *gantt.Assembler
}

// NewGanttTasksTool creates a GanttTasksTool.
func NewGanttTasksTool(asm *gantt.Assembler) *GanttTasksTool {
	return &GanttTasksTool{asm: asm}
}

// Definition returns the MCP tool definition for registration.
func (t *GanttTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_gantt_tasks",
		mcp.WithDescription(
			"List every task of a project in dependency order (a task never appears before "+
				"a task it waits on), with dates and what each task waits on.",
		),
		projectOption(),
	)
}

// Handle processes the capstone_gantt_tasks tool call.
func (t *GanttTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, bad := requireString(req, "project_id")
	if bad != nil {
		return bad, nil
	}
	chart, err := t.asm.TasksWithDependencies(ctx, domain.ProjectID(project))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("# Tasks of `%s`\n\n%s", project, report.Tasks(chart, report.FormatMarkdown))), nil
}

// --- capstone_gantt_hierarchy ---

// GanttHierarchyTool handles the capstone_gantt_hierarchy MCP tool.
type GanttHierarchyTool struct {
	asm *gantt.Assembler
}

// NewGanttHierarchyTool creates a GanttHierarchyTool.
func NewGanttHierarchyTool(asm *gantt.Assembler) *GanttHierarchyTool {
	return &GanttHierarchyTool{asm: asm}
}

// Definition returns the MCP tool definition for registration.
func (t *GanttHierarchyTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_gantt_hierarchy",
		mcp.WithDescription(
			"Show the milestone → feature → function tree of a project, milestones in timeline order.",
		),
		projectOption(),
	)
}

// Handle processes the capstone_gantt_hierarchy tool call.
func (t *GanttHierarchyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, bad := requireString(req, "project_id")
	if bad != nil {
		return bad, nil
	}
	tree, err := t.asm.HierarchyFor(ctx, domain.ProjectID(project))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("# Timeline of `%s`\n\n%s", project, report.Hierarchy(tree, report.FormatMarkdown))), nil
}

// --- capstone_gantt_shift ---

// GanttShiftTool handles the capstone_gantt_shift MCP tool.
type GanttShiftTool struct {
	asm *gantt.Assembler
}

// NewGanttShiftTool creates a GanttShiftTool.
func NewGanttShiftTool(asm *gantt.Assembler) *GanttShiftTool {
	return &GanttShiftTool{asm: asm}
}

// Definition returns the MCP tool definition for registration.
func (t *GanttShiftTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_gantt_shift",
		mcp.WithDescription(
			"Move a task's or milestone's start date and deadline by a number of days. "+
				"Only the named entity moves; dependents keep their dates.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind"),
			mcp.Enum(string(domain.KindTask), string(domain.KindMilestone)),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity ID"),
		),
		mcp.WithNumber("delta_days",
			mcp.Required(),
			mcp.Description("Days to move by. Negative moves earlier."),
		),
	)
}

// Handle processes the capstone_gantt_shift tool call.
func (t *GanttShiftTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, bad := requireString(req, "kind")
	if bad != nil {
		return bad, nil
	}
	id, bad := requireString(req, "id")
	if bad != nil {
		return bad, nil
	}
	ref := domain.EntityRef{Kind: domain.EntityKind(strings.ToLower(kind)), ID: id}
	if _, ok := req.GetArguments()["delta_days"].(float64); !ok {
		return mcp.NewToolResultError("'delta_days' is required"), nil
	}
	res, err := t.asm.ShiftDates(ctx, ref, intArg(req, "delta_days", 0))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Moved %s by %+d days.\n\n**Start:** %s\n**Deadline:** %s",
		res.Ref, res.DeltaDays, formatDate(res.StartDate), formatDate(res.Deadline),
	)), nil
}
