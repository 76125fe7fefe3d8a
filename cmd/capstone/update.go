package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/capstone-tracker/internal/server"
	"github.com/HendryAvila/capstone-tracker/internal/updater"
)

func newUpdateCmd() *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update capstone to the latest release",
		Long: `Checks GitHub for the latest capstone release and replaces the
current binary when a newer version exists. Running servers keep the old
binary until they are restarted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := updater.New()
			if err != nil {
				return err
			}
			return runUpdate(cmd, up, checkOnly)
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether an update exists")
	return cmd
}

func runUpdate(cmd *cobra.Command, up *updater.Updater, checkOnly bool) error {
	out := cmd.OutOrStdout()
	res, err := up.Check(cmd.Context(), server.Version)
	if err != nil {
		return err
	}
	if !res.Available {
		fmt.Fprintf(out, "capstone %s is the latest version\n", res.Current)
		return nil
	}
	fmt.Fprintf(out, "capstone %s is available (running %s)\n%s\n", res.Latest, res.Current, res.URL)
	if checkOnly {
		return nil
	}

	exe, err := updater.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	if err := up.Install(cmd.Context(), res, exe); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s to %s\n", exe, res.Latest)
	return nil
}
