package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// Extension is the file extension used when a report is written to --out-dir.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// Report is one search as the CLI presents it: the query, its result set and any
// enrichment outcomes gathered for it.
type Report struct {
	Query      core.SearchQuery         `json:"query"`
	Result     *core.SearchResult       `json:"result"`
	Enrichment []core.EnrichmentOutcome `json:"enrichment,omitempty"`
}

// Formatter renders search reports, enrichment outcomes and history listings.
type Formatter interface {
	FormatReport(report *Report) (string, error)
	FormatOutcomes(outcomes []core.EnrichmentOutcome) (string, error)
	FormatHistory(entries []store.HistoryEntry) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// outcomeFor returns the enrichment outcome recorded for the vendor at index.
func outcomeFor(outcomes []core.EnrichmentOutcome, index int) (core.EnrichmentOutcome, bool) {
	for _, outcome := range outcomes {
		if outcome.Vendor.Index == index {
			return outcome, true
		}
	}
	return core.EnrichmentOutcome{}, false
}

// ratingLabel prefers the backend's native rating and falls back to the enrichment result.
func ratingLabel(vendor core.Vendor, outcome core.EnrichmentOutcome, enriched bool) string {
	if vendor.HasRating() {
		return formatRating(vendor.Rating, vendor.RatingCount)
	}
	if !enriched {
		return "-"
	}
	switch outcome.Status {
	case core.EnrichmentSucceeded:
		label := formatRating(outcome.Rating, outcome.RatingCount)
		if outcome.FromCache {
			label += " (cached)"
		}
		return label
	case core.EnrichmentFailed:
		return "unavailable"
	case core.EnrichmentPending:
		return "loading"
	default:
		return "-"
	}
}

func formatRating(rating *float64, count *int) string {
	if rating == nil {
		return "-"
	}
	label := strconv.FormatFloat(*rating, 'f', 1, 64)
	if count != nil {
		label += fmt.Sprintf(" (%d)", *count)
	}
	return label
}

func contactLabel(contacts core.Contacts) string {
	parts := make([]string, 0, 3)
	if value := contacts.Email.String(); value != "" {
		parts = append(parts, value)
	}
	if value := contacts.Phone.String(); value != "" {
		parts = append(parts, value)
	}
	if value := strings.TrimSpace(contacts.Address); value != "" {
		parts = append(parts, value)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}

func locationLabel(query core.SearchQuery) string {
	if !query.LocationBased || query.Location == "" {
		return "-"
	}
	return query.Location
}

func outcomeNotes(outcome core.EnrichmentOutcome) string {
	if outcome.ErrorMessage != "" {
		return outcome.ErrorMessage
	}
	if outcome.Latitude != nil && outcome.Longitude != nil {
		return fmt.Sprintf("%.5f, %.5f", *outcome.Latitude, *outcome.Longitude)
	}
	return ""
}

func summaryLine(result *core.SearchResult) string {
	summary := fmt.Sprintf("%d vendors", result.Count)
	if result.Meta.Time > 0 {
		summary += fmt.Sprintf(" in %.1fs", result.Meta.Time)
	}
	if result.HasMore {
		summary += ", more available"
	}
	return summary
}
