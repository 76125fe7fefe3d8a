package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the capstone-plan MCP prompt.
// It walks the AI through wiring dependencies for a set of tasks.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("capstone-plan",
		mcp.WithPromptDescription(
			"Plan the order of work in a project by proposing dependencies between its tasks "+
				"and adding the ones I approve.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project to plan"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the capstone-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := req.Params.Arguments["project_id"]
	if project == "" {
		return nil, fmt.Errorf("project_id is required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan project %s", project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Help me plan the order of work in project `%s`.\n\n"+
						"1. Run `capstone_gantt_tasks` with project_id='%s' to see every task and its current dependencies\n"+
						"2. Propose missing dependencies as a list of \"A before B\" pairs with a one-line reason each\n"+
						"3. Check each pair with `capstone_dependency_validate` and drop any that would create a cycle\n"+
						"4. Ask me which pairs to keep, then add them with `capstone_dependency_add`\n"+
						"5. Show the final order with `capstone_gantt_tasks`",
					project, project,
				)),
			},
		},
	}, nil
}
