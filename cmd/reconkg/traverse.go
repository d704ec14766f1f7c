package main

import "github.com/spf13/cobra"

func newTraverseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traverse",
		Short: "Bounded BFS traversal, shortest path, and reachability over the graph",
	}

	var start string
	var maxDepth int
	walk := &cobra.Command{
		Use:   "walk",
		Short: "Enumerate hops reachable from a node within a bounded depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "graph.traverse", map[string]any{"startId": start, "maxDepth": maxDepth})
		},
	}
	walk.Flags().StringVar(&start, "start", "", "start node id")
	walk.Flags().IntVar(&maxDepth, "max-depth", 10, "maximum traversal depth")
	_ = walk.MarkFlagRequired("start")

	var fromID, toID string
	shortest := &cobra.Command{
		Use:   "shortest-path",
		Short: "Find the shortest path between two nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "graph.shortestPath", map[string]any{"sourceId": fromID, "targetId": toID})
		},
	}
	shortest.Flags().StringVar(&fromID, "from", "", "source node id")
	shortest.Flags().StringVar(&toID, "to", "", "target node id")
	_ = shortest.MarkFlagRequired("from")
	_ = shortest.MarkFlagRequired("to")

	var reachStart, targetKind string
	reachable := &cobra.Command{
		Use:   "reachable",
		Short: "List nodes of a given kind reachable from a start node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "graph.reachableFrom", map[string]any{"startId": reachStart, "targetKind": targetKind})
		},
	}
	reachable.Flags().StringVar(&reachStart, "start", "", "start node id")
	reachable.Flags().StringVar(&targetKind, "kind", "", "target node kind")
	_ = reachable.MarkFlagRequired("start")
	_ = reachable.MarkFlagRequired("kind")

	cmd.AddCommand(walk, shortest, reachable)
	return cmd
}
