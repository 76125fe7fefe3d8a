package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/capstone-tracker/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of capstone",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "capstone version %s\n", server.Version)
		},
	}
}
