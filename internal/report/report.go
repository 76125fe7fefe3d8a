// Package report renders Gantt views as tables for the terminal and for
// MCP tool results.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
)

// BarWidth is the number of cells in the timeline column.
const BarWidth = 30

// Format selects how a table is rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func render(t table.Writer, f Format) string {
	if f == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func date(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format(time.DateOnly)
}

func pct(p *int) string {
	if p == nil {
		return "—"
	}
	return fmt.Sprintf("%d%%", *p)
}

func ids(list []domain.TaskID) string {
	if len(list) == 0 {
		return ""
	}
	parts := make([]string, len(list))
	for i, id := range list {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// window is the date range covered by a chart's bars.
type window struct {
	start, end time.Time
}

func windowOf(tasks []gantt.TaskBar) (window, bool) {
	var w window
	ok := false
	for _, t := range tasks {
		for _, d := range []*time.Time{t.StartDate, t.Deadline} {
			if d == nil {
				continue
			}
			if !ok || d.Before(w.start) {
				w.start = *d
			}
			if !ok || d.After(w.end) {
				w.end = *d
			}
			ok = true
		}
	}
	return w, ok
}

// bar draws a task's span inside the window. A task with only one date
// is drawn as a single mark.
func (w window) bar(start, end *time.Time) string {
	if start == nil && end == nil {
		return ""
	}
	if start == nil {
		start = end
	}
	if end == nil {
		end = start
	}
	span := w.end.Sub(w.start)
	cell := func(t time.Time) int {
		if span <= 0 {
			return 0
		}
		i := int(float64(t.Sub(w.start)) / float64(span) * float64(BarWidth-1))
		return max(0, min(BarWidth-1, i))
	}
	from, to := cell(*start), cell(*end)
	if to < from {
		to = from
	}
	var b strings.Builder
	for i := range BarWidth {
		switch {
		case i >= from && i <= to:
			b.WriteRune('█')
		default:
			b.WriteRune('·')
		}
	}
	return b.String()
}

// Tasks renders the flat task chart in topological order with a timeline
// column.
func Tasks(chart gantt.TaskChart, f Format) string {
	if len(chart.Tasks) == 0 {
		return fmt.Sprintf("No tasks in project %s.\n", chart.ProjectID)
	}
	w, hasDates := windowOf(chart.Tasks)

	t := newTable()
	header := table.Row{"#", "Task", "Status", "Start", "Deadline", "Waits on"}
	if hasDates && f == FormatText {
		header = append(header, fmt.Sprintf("%s … %s", w.start.Format(time.DateOnly), w.end.Format(time.DateOnly)))
	}
	t.AppendHeader(header)
	for i, bar := range chart.Tasks {
		row := table.Row{
			i + 1,
			fmt.Sprintf("%s (%s)", bar.Title, bar.ID),
			bar.Status,
			date(bar.StartDate),
			date(bar.Deadline),
			ids(bar.Dependencies),
		}
		if hasDates && f == FormatText {
			row = append(row, text.FgHiCyan.Sprint(w.bar(bar.StartDate, bar.Deadline)))
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d tasks, %d dependencies", len(chart.Tasks), len(chart.Edges))})
	return render(t, f)
}

// Hierarchy renders the milestone → feature → function tree, one row per
// node, indented by depth.
func Hierarchy(tree []gantt.MilestoneNode, f Format) string {
	if len(tree) == 0 {
		return "No milestones.\n"
	}
	t := newTable()
	t.AppendHeader(table.Row{"Item", "Status", "Start", "Deadline", "Progress"})
	for _, m := range tree {
		t.AppendRow(table.Row{"◆ " + m.Title, "", date(m.StartDate), date(m.Deadline), pct(m.Progress)})
		for _, feat := range m.Features {
			t.AppendRow(table.Row{"   " + feat.Title, feat.Status, "", "", pct(feat.Progress)})
			for _, fn := range feat.Functions {
				t.AppendRow(table.Row{"      " + fn.Title, fn.Status, "", "", pct(fn.Progress)})
			}
		}
	}
	return render(t, f)
}
