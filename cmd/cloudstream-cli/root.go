package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cloudstream-cli",
		Short:        "Inspect point-cloud frames and watch a running cloudstream server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newInspectCmd(afero.NewOsFs()),
		newMonitorCmd(),
	)

	return rootCmd
}
