package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
	"github.com/nmoretto/tally/internal/common"
)

func correctCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <decision-id> <category>",
		Short: "Apply a human correction to a decision",
		Long: `Relabel one persisted decision with the correct category. The merchant
memory record is updated and its override counter incremented, which
locks the merchant against future automated relabeling. A decision can
be corrected exactly once.

Run "tally categories" in doubt; the category must be in the whitelist.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runCorrect,
	}
}

func runCorrect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	decisionID := args[0]
	category := strings.Join(args[1:], " ")

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

	record, err := eng.Correct(ctx, decisionID, category)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyCorrected):
			return common.NewUserError(
				fmt.Sprintf("decision %s was already corrected once and is locked", decisionID), err)
		case errors.Is(err, common.ErrUnknownCategory):
			return common.NewUserError(
				fmt.Sprintf("category %q is not in the whitelist, see 'tally categories'", category), err)
		default:
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.SuccessStyle.Render(
		fmt.Sprintf("Corrected %s: %s → %s", decisionID, record.Category, category)))
	return nil
}
