// Package tools implements MCP tool handlers for the capstone tracker.
//
// Each tool is a struct holding the core service it calls, with
// Definition() returning the mcp.Tool schema and Handle() processing one
// CallToolRequest. Handlers translate only: domain errors become tool
// errors the model can read, anything else is returned as a Go error.
package tools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolError converts err into a tool result when it is a domain error.
// Internal failures pass through as the second return value.
func toolError(err error) (*mcp.CallToolResult, error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return nil, err
	}
	msg := fmt.Sprintf("%s: %s", de.Kind, de.Message)
	if len(de.Path) > 0 {
		msg += "\nCycle: " + joinPath(de.Path)
	}
	return mcp.NewToolResultError(msg), nil
}

func joinPath(path []domain.TaskID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, " → ")
}

// requireString returns a tool error result when the argument is empty.
func requireString(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	v := strings.TrimSpace(req.GetString(key, ""))
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("'%s' is required", key))
	}
	return v, nil
}

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// dateArg parses an optional YYYY-MM-DD or RFC 3339 argument.
func dateArg(req mcp.CallToolRequest, key string) (*time.Time, error) {
	s := strings.TrimSpace(req.GetString(key, ""))
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Invalid(fmt.Sprintf("%s: expected YYYY-MM-DD or an RFC 3339 timestamp", key))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format(time.DateOnly)
}
