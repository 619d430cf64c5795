package output

import (
	"fmt"
	"strings"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatReport renders a search report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Result == nil {
		return "", nil
	}
	result := report.Result

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(titleFor(report))))
	sb.WriteString("| # | Vendor | Rating | Contact | Source |\n")
	sb.WriteString("|---|--------|--------|---------|--------|\n")

	for i, vendor := range result.Results {
		outcome, enriched := outcomeFor(report.Enrichment, i)
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i,
			escapeMarkdownCell(vendor.Name),
			escapeMarkdownCell(ratingLabel(vendor, outcome, enriched)),
			escapeMarkdownCell(contactLabel(vendor.Contacts)),
			escapeMarkdownCell(vendor.Source),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Results**: %s\n", summaryLine(result)))
	if result.Meta.Solution != "" {
		sb.WriteString(fmt.Sprintf("\n**Solution**: %s\n", result.Meta.Solution))
	}
	if len(result.Meta.SearchSpace) > 0 {
		sb.WriteString("\n**Search space**:\n")
		for _, item := range result.Meta.SearchSpace {
			sb.WriteString("- " + item + "\n")
		}
	}
	return sb.String(), nil
}

// FormatOutcomes renders enrichment outcomes as a Markdown table.
func (f *MarkdownFormatter) FormatOutcomes(outcomes []core.EnrichmentOutcome) (string, error) {
	if len(outcomes) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("| # | Vendor | Status | Rating | Notes |\n")
	sb.WriteString("|---|--------|--------|--------|-------|\n")
	for _, outcome := range outcomes {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			outcome.Vendor.Index,
			escapeMarkdownCell(outcome.Vendor.Name),
			outcome.Status.String(),
			formatRating(outcome.Rating, outcome.RatingCount),
			escapeMarkdownCell(outcomeNotes(outcome)),
		))
	}
	return sb.String(), nil
}

// FormatHistory renders recorded searches as a Markdown table.
func (f *MarkdownFormatter) FormatHistory(entries []store.HistoryEntry) (string, error) {
	if len(entries) == 0 {
		return "_No searches recorded._\n", nil
	}

	var sb strings.Builder
	sb.WriteString("| Search ID | Goal | Location | Country | Results | Searched |\n")
	sb.WriteString("|-----------|------|----------|---------|---------|----------|\n")
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %s |\n",
			escapeMarkdownCell(entry.SearchID),
			escapeMarkdownCell(entry.Query.Goal),
			escapeMarkdownCell(locationLabel(entry.Query)),
			entry.Query.CountryCode,
			entry.ResultCount,
			entry.CreatedAt.UTC().Format("2006-01-02 15:04 MST"),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
