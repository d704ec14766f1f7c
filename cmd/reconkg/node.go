package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Create, upsert, find, and delete graph nodes",
	}

	var kind, propsJSON, parentID string
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Upsert a node by its per-kind natural key",
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProps(propsJSON)
			if err != nil {
				return err
			}
			return dispatch(cmd, "node.upsert", map[string]any{
				"kind": kind, "props": props, "parentId": parentID,
			})
		},
	}
	upsert.Flags().StringVar(&kind, "kind", "", "node kind (host, service, endpoint, ...)")
	upsert.Flags().StringVar(&propsJSON, "props", "{}", "node properties as a JSON object")
	upsert.Flags().StringVar(&parentID, "parent", "", "parent node id, required for kinds scoped to a parent")
	_ = upsert.MarkFlagRequired("kind")

	var id string
	get := &cobra.Command{
		Use:   "get",
		Short: "Find a node by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "node.findById", map[string]any{"id": id})
		},
	}
	get.Flags().StringVar(&id, "id", "", "node id")
	_ = get.MarkFlagRequired("id")

	var deleteID string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a node by id, cascading its edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "node.delete", map[string]any{"id": deleteID})
		},
	}
	del.Flags().StringVar(&deleteID, "id", "", "node id")
	_ = del.MarkFlagRequired("id")

	var findKind string
	find := &cobra.Command{
		Use:   "find",
		Short: "Find nodes by kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "node.findByKind", map[string]any{"kind": findKind})
		},
	}
	find.Flags().StringVar(&findKind, "kind", "", "node kind")
	_ = find.MarkFlagRequired("kind")

	cmd.AddCommand(upsert, get, del, find)
	return cmd
}

func parseProps(propsJSON string) (map[string]any, error) {
	var props map[string]any
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return nil, fmt.Errorf("--props must be a JSON object: %w", err)
	}
	return props, nil
}
