// Package resources implements MCP resource handlers for the tracker.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (capstone://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ganttPrefix = "capstone://projects/"
	ganttSuffix = "/gantt"
)

// ganttDocument is the JSON body of the Gantt resource.
type ganttDocument struct {
	ProjectID  domain.ProjectID      `json:"projectId"`
	Milestones []gantt.MilestoneNode `json:"milestones"`
	Tasks      gantt.TaskChart       `json:"tasks"`
}

// Handler manages tracker resource endpoints.
type Handler struct {
	gantt *gantt.Assembler
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(asm *gantt.Assembler) *Handler {
	return &Handler{gantt: asm}
}

// GanttTemplate returns the MCP resource template for a project's Gantt
// data.
func (h *Handler) GanttTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		ganttPrefix+"{projectId}"+ganttSuffix,
		"Project Gantt",
		mcp.WithTemplateDescription("Milestone hierarchy and dependency-ordered tasks of one project"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// projectFromURI extracts the project ID from capstone://projects/{id}/gantt.
func projectFromURI(uri string) (domain.ProjectID, bool) {
	if !strings.HasPrefix(uri, ganttPrefix) || !strings.HasSuffix(uri, ganttSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, ganttPrefix), ganttSuffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return domain.ProjectID(id), true
}

// HandleGantt returns both Gantt views of a project as JSON.
func (h *Handler) HandleGantt(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	project, ok := projectFromURI(uri)
	if !ok {
		return errorResource(uri, "expected "+ganttPrefix+"{projectId}"+ganttSuffix), nil
	}

	tree, err := h.gantt.HierarchyFor(ctx, project)
	if err != nil {
		return errorResource(uri, err.Error()), nil
	}
	chart, err := h.gantt.TasksWithDependencies(ctx, project)
	if err != nil {
		return errorResource(uri, err.Error()), nil
	}

	data, err := json.MarshalIndent(ganttDocument{ProjectID: project, Milestones: tree, Tasks: chart}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling gantt: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
