package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// ActivityLister reads the audit log.
type ActivityLister interface {
	ListActivity(ctx context.Context, project domain.ProjectID, limit int) ([]domain.Activity, error)
}

// ActivityTool handles the capstone_activity MCP tool.
type ActivityTool struct {
	log ActivityLister
}

// NewActivityTool creates an ActivityTool.
func NewActivityTool(log ActivityLister) *ActivityTool {
	return &ActivityTool{log: log}
}

// Definition returns the MCP tool definition for registration.
func (t *ActivityTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_activity",
		mcp.WithDescription("Show recent changes to a project, newest first."),
		projectOption(),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum entries (default %d)", store.DefaultActivityLimit)),
		),
	)
}

// Handle processes the capstone_activity tool call.
func (t *ActivityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, bad := requireString(req, "project_id")
	if bad != nil {
		return bad, nil
	}
	acts, err := t.log.ListActivity(ctx, domain.ProjectID(project), intArg(req, "limit", store.DefaultActivityLimit))
	if err != nil {
		return toolError(err)
	}
	if len(acts) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No activity recorded for `%s`.", project)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Activity of `%s`\n\n", project)
	for _, a := range acts {
		fmt.Fprintf(&b, "- %s **%s** %s: %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.Action, a.Entity, a.Detail)
	}
	return mcp.NewToolResultText(b.String()), nil
}
