package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
	"github.com/nmoretto/tally/internal/common"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <description>",
		Short: "Classify one expense description",
		Long: `Run the full classification cascade for a single free-text expense
description and print the decision with its evidence trail and risk
assessment. The decision is persisted to the audit log and can later be
corrected with "tally correct".`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	description := strings.Join(args, " ")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, closeEngine, err := buildEngine(store)
	if err != nil {
		return err
	}
	defer closeEngine()

	record, err := eng.Classify(ctx, description)
	if err != nil {
		common.LogError(err, "classification failed", common.Fields{"description": description})
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatDecision(record))
	return nil
}
