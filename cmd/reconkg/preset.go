package main

import "github.com/spf13/cobra"

func newPresetCmd() *cobra.Command {
	var name, hostID string
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Run one of the six closed analytical graph presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{}
			if hostID != "" {
				params["hostId"] = hostID
			}
			return dispatch(cmd, "graph.runPreset", map[string]any{"name": name, "params": params})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "preset name (attack_surface, critical_vulns, credential_exposure, unscanned_services, vuln_by_host, reachable_services)")
	cmd.Flags().StringVar(&hostID, "host", "", "host node id, required by reachable_services")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
