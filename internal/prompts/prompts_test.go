package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func getPrompt(t *testing.T, handle func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error), args map[string]string) (*mcp.GetPromptResult, error) {
	t.Helper()
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = args
	return handle(context.Background(), req)
}

func promptText(t *testing.T, result *mcp.GetPromptResult) string {
	t.Helper()
	if len(result.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(result.Messages))
	}
	tc, ok := result.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Messages[0].Content)
	}
	return tc.Text
}

func TestStatusPrompt(t *testing.T) {
	p := NewStatusPrompt()
	if p.Definition().Name != "capstone-status" {
		t.Errorf("name = %q", p.Definition().Name)
	}

	result, err := getPrompt(t, p.Handle, map[string]string{"project_id": "p1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, result)
	for _, want := range []string{"capstone_gantt_hierarchy", "capstone_gantt_tasks", "capstone_activity", "project_id='p1'"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt should mention %q", want)
		}
	}

	if _, err := getPrompt(t, p.Handle, nil); err == nil {
		t.Error("missing project_id should fail")
	}
}

func TestPlanPrompt(t *testing.T) {
	p := NewPlanPrompt()
	if p.Definition().Name != "capstone-plan" {
		t.Errorf("name = %q", p.Definition().Name)
	}

	result, err := getPrompt(t, p.Handle, map[string]string{"project_id": "p1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, result)
	if !strings.Contains(text, "capstone_dependency_validate") || !strings.Contains(text, "capstone_dependency_add") {
		t.Errorf("plan prompt should validate before adding:\n%s", text)
	}
}
