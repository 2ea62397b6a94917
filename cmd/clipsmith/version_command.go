package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipsmith/clipsmith-agent/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "clipsmith %s (built %s, commit %s)\n",
				config.Version, config.BuildTime, config.GitCommit)
			return nil
		},
	}
}
