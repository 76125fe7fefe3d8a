package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- capstone_progress_get ---

// ProgressTool handles the capstone_progress_get MCP tool.
type ProgressTool struct {
	agg *progress.Aggregator
}

// NewProgressTool creates a ProgressTool.
func NewProgressTool(agg *progress.Aggregator) *ProgressTool {
	return &ProgressTool{agg: agg}
}

// Definition returns the MCP tool definition for registration.
func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("capstone_progress_get",
		mcp.WithDescription(
			"Get the rolled-up progress of a function, feature or milestone. "+
				"Milestones include a per-feature breakdown.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind"),
			mcp.Enum(string(domain.KindFunction), string(domain.KindFeature), string(domain.KindMilestone)),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity ID"),
		),
	)
}

// Handle processes the capstone_progress_get tool call.
func (t *ProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, bad := requireString(req, "kind")
	if bad != nil {
		return bad, nil
	}
	id, bad := requireString(req, "id")
	if bad != nil {
		return bad, nil
	}
	ref := domain.EntityRef{Kind: domain.EntityKind(kind), ID: id}
	switch ref.Kind {
	case domain.KindFunction, domain.KindFeature, domain.KindMilestone:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("'kind' must be one of: function, feature, milestone (got %q)", kind)), nil
	}

	c, err := t.agg.Cache().Get(ctx, ref)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatProgress(c)), nil
}

func formatProgress(c progress.CachedProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Progress of %s\n\n", c.Ref)
	switch {
	case c.Progress != nil:
		p := c.Progress
		fmt.Fprintf(&b, "**Status:** %s\n**Completed:** %d/%d\n**Progress:** %d%%\n", p.Status, p.Completed, p.Total, p.Percentage)
	case c.Milestone != nil:
		m := c.Milestone
		fmt.Fprintf(&b, "**Basis:** %s\n**Completed:** %d/%d\n**Progress:** %d%%\n\n", m.Basis, m.Completed, m.Total, m.Percentage)
		if len(m.ByFeature) == 0 {
			b.WriteString("No linked features.\n")
			break
		}
		b.WriteString("| Feature | Completed | Progress |\n")
		b.WriteString("|---------|-----------|----------|\n")
		for _, f := range m.ByFeature {
			fmt.Fprintf(&b, "| `%s` %s | %d/%d | %d%% |\n", f.FeatureID, f.Title, f.Completed, f.Total, f.Percentage)
		}
	}
	return b.String()
}

// --- capstone_milestone_link / capstone_milestone_unlink ---

// MilestoneLinkTool handles capstone_milestone_link and, with unlink set,
// capstone_milestone_unlink.
type MilestoneLinkTool struct {
	agg    *progress.Aggregator
	unlink bool
}

// NewMilestoneLinkTool creates the link tool.
func NewMilestoneLinkTool(agg *progress.Aggregator) *MilestoneLinkTool {
	return &MilestoneLinkTool{agg: agg}
}

// NewMilestoneUnlinkTool creates the unlink tool.
func NewMilestoneUnlinkTool(agg *progress.Aggregator) *MilestoneLinkTool {
	return &MilestoneLinkTool{agg: agg, unlink: true}
}

// Definition returns the MCP tool definition for registration.
func (t *MilestoneLinkTool) Definition() mcp.Tool {
	name, desc := "capstone_milestone_link", "Link a feature to a milestone. The milestone is recomputed."
	if t.unlink {
		name, desc = "capstone_milestone_unlink", "Unlink a feature from a milestone. The milestone is recomputed."
	}
	return mcp.NewTool(name,
		mcp.WithDescription(desc),
		mcp.WithString("milestone_id",
			mcp.Required(),
			mcp.Description("Milestone ID"),
		),
		mcp.WithString("feature_id",
			mcp.Required(),
			mcp.Description("Feature ID, same project as the milestone"),
		),
	)
}

// Handle processes the link or unlink tool call.
func (t *MilestoneLinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, bad := requireString(req, "milestone_id")
	if bad != nil {
		return bad, nil
	}
	f, bad := requireString(req, "feature_id")
	if bad != nil {
		return bad, nil
	}
	milestone, feature := domain.MilestoneID(m), domain.FeatureID(f)

	var err error
	if t.unlink {
		err = t.agg.UnlinkFeature(ctx, milestone, feature)
	} else {
		err = t.agg.LinkFeature(ctx, milestone, feature)
	}
	if err != nil {
		return toolError(err)
	}
	c, err := t.agg.Cache().Get(ctx, domain.MilestoneRef(milestone))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatProgress(c)), nil
}
