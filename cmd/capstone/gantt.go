package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/report"
)

func newGanttCmd(opts *globalOptions) *cobra.Command {
	var (
		view   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "gantt <project>",
		Short: "Print a project's timeline",
		Long: `Print the milestone hierarchy (--view hierarchy) or the dependency-ordered
task list with a timeline column (--view tasks).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := report.Format(format)
			if f != report.FormatText && f != report.FormatMarkdown {
				return domain.Invalid(fmt.Sprintf("--format must be text or markdown, got %q", format))
			}

			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			project := domain.ProjectID(args[0])
			var out string
			switch view {
			case "tasks":
				chart, err := app.Gantt.TasksWithDependencies(cmd.Context(), project)
				if err != nil {
					return err
				}
				out = report.Tasks(chart, f)
			case "hierarchy":
				tree, err := app.Gantt.HierarchyFor(cmd.Context(), project)
				if err != nil {
					return err
				}
				out = report.Hierarchy(tree, f)
			default:
				return domain.Invalid(fmt.Sprintf("--view must be tasks or hierarchy, got %q", view))
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&view, "view", "tasks", "tasks or hierarchy")
	cmd.Flags().StringVar(&format, "format", string(report.FormatText), "text or markdown")
	return cmd
}
