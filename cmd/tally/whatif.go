package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
)

func whatifCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whatif <description>",
		Short: "Preview which tier would decide, without classifying",
		Long: `Run the read-only portion of the cascade for a description: redaction,
normalization, merchant memory lookup, and rule matching. Nothing is
persisted, no models are called, and merchant memory is not updated.
Useful for tuning the rule table or checking what memory knows before
spending a model call.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWhatif,
	}
}

func runWhatif(cmd *cobra.Command, args []string) error {
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

	probe, err := eng.Probe(ctx, description)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.TitleStyle.Render("Counterfactual"))
	fmt.Fprintf(out, "%s %s\n", cli.BoldStyle.Render("Normalized:"), probe.CleanDescription)
	if probe.HadPII {
		fmt.Fprintln(out, cli.WarningStyle.Render("PII would be redacted"))
	}

	if probe.MatchName != "" {
		fmt.Fprintf(out, "%s %s (label %q, similarity %.2f, overrides %d)\n",
			cli.BoldStyle.Render("Memory match:"),
			probe.MatchName, probe.MatchLabel, probe.Similarity, probe.OverrideCount)
	} else {
		fmt.Fprintln(out, cli.SubtleStyle.Render("no merchant memory match"))
	}

	switch {
	case probe.RuleAmbiguous:
		fmt.Fprintln(out, cli.WarningStyle.Render("rules: ambiguous, would force Needs Review"))
	case probe.RuleCategory != "":
		fmt.Fprintf(out, "%s %s (keyword %q)\n",
			cli.BoldStyle.Render("Rule match:"), probe.RuleCategory, probe.RuleKeyword)
	default:
		fmt.Fprintln(out, cli.SubtleStyle.Render("no rule match"))
	}

	fmt.Fprintf(out, "%s %s\n", cli.BoldStyle.Render("Predicted tier:"), probe.PredictedSource)
	return nil
}
