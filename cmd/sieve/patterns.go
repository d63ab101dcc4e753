package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/sieve/pkg/pattern"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	patternsPath    string
	patternsBuiltin string
	patternsFormat  string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage pattern sets",
	Long:  "Commands for listing and inspecting pattern sets",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns",
	Long:  "Display the patterns of a pattern file or builtin set with their IDs and flags",
	RunE:  runPatternsList,
}

func init() {
	patternsCmd.AddCommand(patternsListCmd)
	patternsListCmd.Flags().StringVar(&patternsPath, "patterns", "", "Path to a YAML patterns file")
	patternsListCmd.Flags().StringVar(&patternsBuiltin, "builtin", pattern.DefaultBuiltin, "Builtin pattern set")
	patternsListCmd.Flags().StringVar(&patternsFormat, "format", "table", "Output format: table, json")
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	loader := pattern.NewLoader()

	var (
		set *types.PatternSet
		err error
	)
	if patternsPath != "" {
		set, err = loader.LoadFile(patternsPath)
		if err != nil {
			return fmt.Errorf("loading patterns from %s: %w", patternsPath, err)
		}
	} else {
		set, err = loader.LoadBuiltin(patternsBuiltin)
		if err != nil {
			return fmt.Errorf("loading builtin patterns: %w", err)
		}
	}

	switch patternsFormat {
	case "json":
		return outputPatternsJSON(cmd, set.Patterns())
	case "table":
		return outputPatternsTable(cmd, set.Patterns())
	default:
		return fmt.Errorf("unknown output format: %s", patternsFormat)
	}
}

// patternJSON is the JSON form of a pattern.
type patternJSON struct {
	ID    uint   `json:"id"`
	Text  string `json:"text"`
	Flags string `json:"flags"`
}

func outputPatternsJSON(cmd *cobra.Command, patterns []types.Pattern) error {
	out := make([]patternJSON, len(patterns))
	for i, p := range patterns {
		out[i] = patternJSON{ID: p.ID, Text: p.Text, Flags: p.Flags.String()}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputPatternsTable(cmd *cobra.Command, patterns []types.Pattern) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tFlags\tText\n")
	fmt.Fprintf(w, "--\t-----\t----\n")

	for _, p := range patterns {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Flags, p.Text)
	}

	return nil
}
