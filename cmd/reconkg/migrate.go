package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema to the latest version and seed built-in Datalog presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if check {
				pending, err := rootStore.PendingMigrations(cmd.Context())
				if err != nil {
					return err
				}
				out, err := json.Marshal(struct {
					Pending []string `json:"pending"`
				}{Pending: pending})
				if err != nil {
					return fmt.Errorf("encode pending migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			return dispatch(cmd, "migrate", nil)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "report pending migrations without applying them")
	return cmd
}
