package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
)

func decisionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent classification decisions",
		RunE:  runDecisions,
	}

	cmd.Flags().IntP("limit", "n", 20, "number of decisions to show")
	cmd.Flags().Bool("needs-review", false, "only show decisions flagged for review")

	return cmd
}

func runDecisions(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	reviewOnly, _ := cmd.Flags().GetBool("needs-review")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.GetRecentDecisions(ctx, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.TitleStyle.Render("Recent decisions"))

	shown := 0
	for i := range records {
		record := &records[i]
		if reviewOnly && !record.NeedsReview {
			continue
		}
		fmt.Fprintln(out, cli.FormatDecisionRow(record))
		shown++
	}

	if shown == 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render("no decisions found"))
	}
	return nil
}
