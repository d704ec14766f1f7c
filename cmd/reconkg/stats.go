package main

import (
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report node counts by kind and edge counts by kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "graph.stats", nil)
		},
	}
}
