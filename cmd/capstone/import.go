package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/capstone-tracker/internal/seed"
)

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <plan.yaml>",
		Short: "Create a project from a YAML plan",
		Long: `Create a project with its milestones, features, functions, tasks and
dependencies from a YAML plan. Dependencies are cycle-checked as they are
added; the first rejected one stops the import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening plan: %w", err)
			}
			defer f.Close()
			plan, err := seed.Decode(f)
			if err != nil {
				return err
			}

			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			sum, err := seed.Apply(cmd.Context(), plan, app.Store, app.Progress, app.Deps, app.Progress.Policy().InitialStatus())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported project %s: %s\n", plan.Project.ID, sum)
			return nil
		},
	}
}
