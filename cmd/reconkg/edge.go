package main

import "github.com/spf13/cobra"

func newEdgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Create, find, and delete graph edges",
	}

	var kind, source, target string
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Upsert an edge by (kind, source, target)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "edge.upsert", map[string]any{
				"kind": kind, "sourceId": source, "targetId": target,
			})
		},
	}
	upsert.Flags().StringVar(&kind, "kind", "", "edge kind (HOST_SERVICE, SERVICE_ENDPOINT, ...)")
	upsert.Flags().StringVar(&source, "source", "", "source node id")
	upsert.Flags().StringVar(&target, "target", "", "target node id")
	_ = upsert.MarkFlagRequired("kind")
	_ = upsert.MarkFlagRequired("source")
	_ = upsert.MarkFlagRequired("target")

	var fromID, fromKind string
	from := &cobra.Command{
		Use:   "from",
		Short: "List edges out of a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "edge.findBySource", map[string]any{"nodeId": fromID, "kind": fromKind})
		},
	}
	from.Flags().StringVar(&fromID, "node", "", "node id")
	from.Flags().StringVar(&fromKind, "kind", "", "edge kind filter (optional)")
	_ = from.MarkFlagRequired("node")

	var toID, toKind string
	to := &cobra.Command{
		Use:   "to",
		Short: "List edges into a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "edge.findByTarget", map[string]any{"nodeId": toID, "kind": toKind})
		},
	}
	to.Flags().StringVar(&toID, "node", "", "node id")
	to.Flags().StringVar(&toKind, "kind", "", "edge kind filter (optional)")
	_ = to.MarkFlagRequired("node")

	var deleteID string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete an edge by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "edge.delete", map[string]any{"id": deleteID})
		},
	}
	del.Flags().StringVar(&deleteID, "id", "", "edge id")
	_ = del.MarkFlagRequired("id")

	cmd.AddCommand(upsert, from, to, del)
	return cmd
}
