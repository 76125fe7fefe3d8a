// Package prompts implements MCP prompt handlers for the tracker.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a specific sequence of tools.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the capstone-status MCP prompt.
// It asks the AI for a progress report on one project.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("capstone-status",
		mcp.WithPromptDescription(
			"Report where a project stands: milestone progress, what is in flight, "+
				"and which tasks are blocked by unfinished dependencies.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project to report on"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the capstone-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := req.Params.Arguments["project_id"]
	if project == "" {
		return nil, fmt.Errorf("project_id is required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Status of project %s", project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Give me a status report for project `%s`.\n\n"+
						"1. Run `capstone_gantt_hierarchy` with project_id='%s' and summarize each milestone's progress\n"+
						"2. Run `capstone_gantt_tasks` with project_id='%s' and list tasks that are not Done but wait on a task that is not Done either\n"+
						"3. Run `capstone_activity` with project_id='%s' and mention the most recent changes\n"+
						"4. Finish with the three tasks I should pick up next, in dependency order",
					project, project, project, project,
				)),
			},
		},
	}, nil
}
