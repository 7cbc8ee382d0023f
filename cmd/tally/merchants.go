package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
)

func merchantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchants",
		Short: "List merchant memory records",
		Long: `Show every merchant the engine has learned, its current category label,
how often it has been seen, and whether a human has verified it.`,
		RunE: runMerchants,
	}

	cmd.Flags().Bool("verified", false, "only show human-verified merchants")

	return cmd
}

func runMerchants(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	verifiedOnly, _ := cmd.Flags().GetBool("verified")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.GetAllMerchants(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.TitleStyle.Render("Merchant memory"))

	shown := 0
	for i := range records {
		record := &records[i]
		if verifiedOnly && record.OverrideCount == 0 {
			continue
		}
		fmt.Fprintln(out, cli.FormatMerchantRow(record))
		shown++
	}

	if shown == 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render("no merchants learned yet"))
	}
	return nil
}
