package cli

import (
	"fmt"
	"strings"

	"github.com/nmoretto/tally/internal/model"
)

// RiskStyle returns the style matching a risk band.
func RiskStyle(level model.RiskLevel) string {
	switch level {
	case model.RiskHigh:
		return ErrorStyle.Render(string(level))
	case model.RiskMedium:
		return WarningStyle.Render(string(level))
	default:
		return SuccessStyle.Render(string(level))
	}
}

// FormatDecision renders one decision record for the terminal.
func FormatDecision(record *model.DecisionRecord) string {
	var b strings.Builder

	category := SuccessStyle.Render(record.Category)
	if record.NeedsReview {
		category = WarningStyle.Render(record.Category)
	}

	b.WriteString(fmt.Sprintf("%s %s\n", BoldStyle.Render("Category:"), category))
	b.WriteString(fmt.Sprintf("%s %.2f\n", BoldStyle.Render("Confidence:"), record.Confidence))
	b.WriteString(fmt.Sprintf("%s %s\n", BoldStyle.Render("Source:"), record.Source))

	level := model.RiskAssessment{Score: record.RiskScore}.Level()
	b.WriteString(fmt.Sprintf("%s %.2f (%s)\n", BoldStyle.Render("Risk:"), record.RiskScore, RiskStyle(level)))

	if record.Explanation != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", BoldStyle.Render("Explanation:"), record.Explanation))
	}
	if record.HadPII {
		b.WriteString(WarningStyle.Render("PII was detected and redacted") + "\n")
	}

	if record.Ensemble != nil {
		b.WriteString(fmt.Sprintf("%s reliability=%s agreement=%.3f self_consistent=%t cross_model=%t\n",
			BoldStyle.Render("Ensemble:"),
			record.Ensemble.Reliability,
			record.Ensemble.AgreementScore,
			record.Ensemble.SelfConsistent,
			record.Ensemble.CrossModelUsed))
	}

	if len(record.Evidence) > 0 {
		b.WriteString(BoldStyle.Render("Evidence:") + "\n")
		for _, line := range record.Evidence {
			b.WriteString(SubtleStyle.Render("  • "+line) + "\n")
		}
	}
	if len(record.RiskFlags) > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", BoldStyle.Render("Flags:"), strings.Join(record.RiskFlags, ", ")))
	}

	b.WriteString(SubtleStyle.Render(fmt.Sprintf("id: %s", record.ID)))
	return BoxStyle.Render(b.String())
}

// FormatDecisionRow renders one decision as a compact list row.
func FormatDecisionRow(record *model.DecisionRecord) string {
	marker := SuccessStyle.Render("✓")
	if record.NeedsReview {
		marker = WarningStyle.Render("?")
	}
	if record.Overridden {
		marker = BoldStyle.Render("✎")
	}

	category := record.Category
	if record.Overridden {
		category = fmt.Sprintf("%s → %s", record.Category, record.OverrideCategory)
	}

	return fmt.Sprintf("%s %s  %-28s %-22s %.2f  %s",
		marker,
		record.CreatedAt.Format("2006-01-02 15:04"),
		truncate(record.CleanDescription, 28),
		category,
		record.Confidence,
		SubtleStyle.Render(record.ID))
}

// FormatMerchantRow renders one merchant memory record as a list row.
func FormatMerchantRow(record *model.MerchantRecord) string {
	label := record.CategoryLabel
	if label == "" {
		label = SubtleStyle.Render("(unlabeled)")
	}

	verified := ""
	if record.OverrideCount > 0 {
		verified = SuccessStyle.Render(fmt.Sprintf(" [human x%d]", record.OverrideCount))
	}

	return fmt.Sprintf("%-32s %-22s seen %d%s",
		truncate(record.Name, 32), label, record.TimesSeen, verified)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
