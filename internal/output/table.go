package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// FormatReport renders a search report as a table.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Result == nil {
		return "", nil
	}
	result := report.Result

	t := newTable()
	t.SetTitle(titleFor(report))
	t.AppendHeader(table.Row{"#", "Vendor", "Rating", "Contact", "Source"})

	for i, vendor := range result.Results {
		outcome, enriched := outcomeFor(report.Enrichment, i)
		t.AppendRow(table.Row{
			i,
			vendor.Name,
			ratingLabel(vendor, outcome, enriched),
			contactLabel(vendor.Contacts),
			vendor.Source,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", summaryLine(result)})

	rendered := t.Render()
	if result.Meta.Solution != "" {
		rendered += "\n\nSolution: " + result.Meta.Solution
	}
	if len(result.Meta.SearchSpace) > 0 {
		rendered += "\nSearch space: " + strings.Join(result.Meta.SearchSpace, ", ")
	}
	return rendered, nil
}

// FormatOutcomes renders enrichment outcomes as a table.
func (f *TableFormatter) FormatOutcomes(outcomes []core.EnrichmentOutcome) (string, error) {
	if len(outcomes) == 0 {
		return "", nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Vendor", "Status", "Rating", "Notes"})
	for _, outcome := range outcomes {
		t.AppendRow(table.Row{
			outcome.Vendor.Index,
			outcome.Vendor.Name,
			outcome.Status.String(),
			formatRating(outcome.Rating, outcome.RatingCount),
			outcomeNotes(outcome),
		})
	}
	return t.Render(), nil
}

// FormatHistory renders recorded searches as a table.
func (f *TableFormatter) FormatHistory(entries []store.HistoryEntry) (string, error) {
	if len(entries) == 0 {
		return "No searches recorded.", nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"Search ID", "Goal", "Location", "Country", "Results", "Searched"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.SearchID,
			entry.Query.Goal,
			locationLabel(entry.Query),
			entry.Query.CountryCode,
			entry.ResultCount,
			entry.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", len(entries), "searches"})
	return t.Render(), nil
}

func titleFor(report *Report) string {
	title := fmt.Sprintf("%q", report.Query.Goal)
	if location := locationLabel(report.Query); location != "-" {
		title += " near " + location
	}
	if report.Query.CountryCode != "" {
		title += " (" + report.Query.CountryCode + ")"
	}
	return title
}
