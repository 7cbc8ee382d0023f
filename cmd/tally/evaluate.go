package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
	"github.com/nmoretto/tally/internal/model"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <file.csv>",
		Short: "Classify a CSV of expense descriptions in bulk",
		Long: `Run the cascade over every row of a CSV file and report aggregate
accuracy statistics. The first column is the description; an optional
second column is the expected category, used to score the run.

Rows classify sequentially so merchant memory learns as it goes, the
same way it would in production.`,
		Args: cobra.ExactArgs(1),
		RunE: runEvaluate,
	}

	cmd.Flags().Bool("header", false, "skip the first row")

	return cmd
}

type evalStats struct {
	bySource    map[model.DecisionSource]int
	total       int
	correct     int
	scored      int
	needsReview int
	highRisk    int
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	skipHeader, _ := cmd.Flags().GetBool("header")

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	if skipHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return fmt.Errorf("no rows to evaluate")
	}

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

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("classifying"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stats := evalStats{bySource: make(map[model.DecisionSource]int)}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			_ = bar.Add(1)
			continue
		}

		record, classifyErr := eng.Classify(ctx, row[0])
		if classifyErr != nil {
			return classifyErr
		}

		stats.total++
		stats.bySource[record.Source]++
		if record.NeedsReview {
			stats.needsReview++
		}
		if (model.RiskAssessment{Score: record.RiskScore}).Level() == model.RiskHigh {
			stats.highRisk++
		}

		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			stats.scored++
			if record.Category == strings.TrimSpace(row[1]) {
				stats.correct++
			}
		}
		_ = bar.Add(1)
	}

	printEvalReport(cmd.OutOrStdout(), stats)
	return nil
}

func printEvalReport(out io.Writer, stats evalStats) {
	fmt.Fprintln(out, cli.TitleStyle.Render("Evaluation report"))
	fmt.Fprintf(out, "%s %d\n", cli.BoldStyle.Render("Classified:"), stats.total)

	for _, source := range []model.DecisionSource{
		model.SourceHumanVerified, model.SourceEmbedding, model.SourceRules, model.SourceLLM,
	} {
		if count := stats.bySource[source]; count > 0 {
			fmt.Fprintf(out, "  %-16s %d\n", source, count)
		}
	}

	fmt.Fprintf(out, "%s %d\n", cli.BoldStyle.Render("Needs review:"), stats.needsReview)
	fmt.Fprintf(out, "%s %d\n", cli.BoldStyle.Render("High risk:"), stats.highRisk)

	if stats.scored > 0 {
		accuracy := float64(stats.correct) / float64(stats.scored) * 100
		fmt.Fprintf(out, "%s %d/%d (%.1f%%)\n",
			cli.BoldStyle.Render("Accuracy:"), stats.correct, stats.scored, accuracy)
	}
}
