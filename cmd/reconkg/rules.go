package main

import "github.com/spf13/cobra"

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Save, list, find, search, and delete named Datalog programs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every saved rule, including seeded presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "rules.list", nil)
		},
	}

	var findName string
	find := &cobra.Command{
		Use:   "find",
		Short: "Find a saved rule by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "rules.findByName", map[string]any{"name": findName})
		},
	}
	find.Flags().StringVar(&findName, "name", "", "rule name")
	_ = find.MarkFlagRequired("name")

	var searchQuery string
	search := &cobra.Command{
		Use:   "search",
		Short: "Search saved rules by name, description, or rule text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "rules.search", map[string]any{"query": searchQuery})
		},
	}
	search.Flags().StringVar(&searchQuery, "query", "", "search term")
	_ = search.MarkFlagRequired("query")

	var saveName, description, ruleFile string
	save := &cobra.Command{
		Use:   "save",
		Short: "Save a human-authored Datalog program under a name",
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := readProgram(ruleFile)
			if err != nil {
				return err
			}
			return dispatch(cmd, "rules.save", map[string]any{
				"name": saveName, "description": description, "ruleText": program, "generatedBy": "human",
			})
		},
	}
	save.Flags().StringVar(&saveName, "name", "", "rule name (must be unique)")
	save.Flags().StringVar(&description, "description", "", "human-readable description")
	save.Flags().StringVar(&ruleFile, "file", "", "path to a .dl source file (default: stdin)")
	_ = save.MarkFlagRequired("name")

	var deleteName string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a saved rule by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "rules.delete", map[string]any{"name": deleteName})
		},
	}
	del.Flags().StringVar(&deleteName, "name", "", "rule name")
	_ = del.MarkFlagRequired("name")

	cmd.AddCommand(list, find, search, save, del)
	return cmd
}
