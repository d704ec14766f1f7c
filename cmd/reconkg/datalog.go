package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newDatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datalog",
		Short: "Extract graph facts and evaluate Datalog programs over them (spec C6/C7/C8)",
	}

	var predicate string
	var limit int
	extract := &cobra.Command{
		Use:   "extract",
		Short: "Project the graph into positional facts, optionally restricted to one predicate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if predicate == "" {
				return dispatch(cmd, "datalog.extractFacts", nil)
			}
			return dispatch(cmd, "datalog.extractFactsByPredicate", map[string]any{"predicate": predicate, "limit": limit})
		},
	}
	extract.Flags().StringVar(&predicate, "predicate", "", "restrict extraction to one predicate (default: all)")
	extract.Flags().IntVar(&limit, "limit", 0, "cap the number of tuples returned (0 = unlimited)")

	var programFile, saveName string
	run := &cobra.Command{
		Use:   "run",
		Short: "Parse and evaluate a Datalog program (read from --file or stdin) against the current graph's facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := readProgram(programFile)
			if err != nil {
				return err
			}
			return dispatch(cmd, "datalog.evaluate", map[string]any{"program": program, "saveName": saveName})
		},
	}
	run.Flags().StringVar(&programFile, "file", "", "path to a .dl source file (default: stdin)")
	run.Flags().StringVar(&saveName, "save-as", "", "save the program under this rule name after evaluating")

	var patternName string
	query := &cobra.Command{
		Use:   "query",
		Short: "Evaluate a named saved rule or preset against the current graph's facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "queryAttackPaths", map[string]any{"patternName": patternName})
		},
	}
	query.Flags().StringVar(&patternName, "name", "", "rule or preset name")
	_ = query.MarkFlagRequired("name")

	cmd.AddCommand(extract, run, query)
	return cmd
}

func readProgram(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return "", err
	}
	return string(data), nil
}
