package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func sampleReport() *Report {
	return &Report{
		Query: core.SearchQuery{Goal: "violin tutor", Location: "Austin, TX", CountryCode: "US", LocationBased: true},
		Result: &core.SearchResult{
			ID:    "abc",
			Count: 2,
			Results: []core.Vendor{
				{
					Name:     "Joe's Violin",
					Contacts: core.Contacts{Email: core.MultipleContact("a@b.com", "c@d.com"), Address: "123 St"},
					Source:   "http://x",
				},
				{
					Name:        "Strings | Co",
					Contacts:    core.Contacts{Phone: core.SingleContact("555-1111")},
					Source:      "http://y",
					Rating:      floatPtr(4.9),
					RatingCount: intPtr(12),
				},
			},
			Meta: core.Meta{Time: 1.2, SearchQuery: "violin tutor", Solution: "ok", SearchSpace: []string{"a", "b"}},
		},
		Enrichment: []core.EnrichmentOutcome{
			{
				Vendor:      core.VendorRef{Index: 0, Name: "Joe's Violin"},
				Status:      core.EnrichmentSucceeded,
				Rating:      floatPtr(4.5),
				RatingCount: intPtr(30),
				FromCache:   true,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestTableReport(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).FormatReport(sampleReport())
	require.NoError(t, err)
	require.Contains(t, rendered, "VENDOR")
	require.Contains(t, rendered, "Joe's Violin")
	require.Contains(t, rendered, "4.5 (30) (cached)")
	require.Contains(t, rendered, "4.9 (12)")
	require.Contains(t, rendered, "a@b.com, c@d.com; 123 St")
	require.Contains(t, rendered, "near Austin, TX (US)")
	require.Contains(t, rendered, "2 vendors in 1.2s")
	require.Contains(t, rendered, "Search space: a, b")
}

func TestMarkdownReportEscapesCells(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatReport(sampleReport())
	require.NoError(t, err)
	require.Contains(t, rendered, "| 1 | Strings \\| Co |")
	require.Contains(t, rendered, "**Solution**: ok")
	require.Contains(t, rendered, "- a\n- b\n")
}

func TestJSONReportKeepsContactShapes(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).FormatReport(sampleReport())
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, 2, decoded.Result.Count)
	require.Equal(t, "Joe's Violin", decoded.Result.Results[0].Name)
	require.Equal(t, []string{"a@b.com", "c@d.com"}, decoded.Result.Results[0].Contacts.Email.Values())
	require.Equal(t, core.ContactSingle, decoded.Result.Results[1].Contacts.Phone.Kind)
	require.Equal(t, []string{"a", "b"}, decoded.Result.Meta.SearchSpace)
	require.Equal(t, core.EnrichmentSucceeded, decoded.Enrichment[0].Status)
}

func TestYAMLReportUsesJSONFieldNames(t *testing.T) {
	rendered, err := NewFormatter(FormatYAML).FormatReport(sampleReport())
	require.NoError(t, err)
	require.Contains(t, rendered, "search_space:")
	require.Contains(t, rendered, "country_code: US")
	require.Contains(t, rendered, "status: succeeded")
	require.False(t, strings.Contains(rendered, "{"), "expected block style output:\n%s", rendered)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	result := decoded["result"].(map[string]any)
	require.Equal(t, "abc", result["id"])
	vendors := result["results"].([]any)
	email := vendors[0].(map[string]any)["contacts"].(map[string]any)["email"]
	require.Equal(t, []any{"a@b.com", "c@d.com"}, email)
}

func TestFormatOutcomes(t *testing.T) {
	outcomes := []core.EnrichmentOutcome{
		{Vendor: core.VendorRef{Index: 0, Name: "Joe's Violin"}, Status: core.EnrichmentSucceeded, Rating: floatPtr(4.5)},
		{Vendor: core.VendorRef{Index: 2, Name: "Bow Shop"}, Status: core.EnrichmentFailed, ErrorMessage: "no match for vendor"},
	}

	rendered, err := NewFormatter(FormatTable).FormatOutcomes(outcomes)
	require.NoError(t, err)
	require.Contains(t, rendered, "succeeded")
	require.Contains(t, rendered, "no match for vendor")

	rendered, err = NewFormatter(FormatMarkdown).FormatOutcomes(outcomes)
	require.NoError(t, err)
	require.Contains(t, rendered, "| 2 | Bow Shop | failed | - | no match for vendor |")

	rendered, err = NewFormatter(FormatJSON).FormatOutcomes(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)
}

func TestFormatHistory(t *testing.T) {
	entries := []store.HistoryEntry{
		{
			SearchID:    "abc",
			Query:       core.SearchQuery{Goal: "violin tutor", Location: "Austin, TX", CountryCode: "US", LocationBased: true},
			ResultCount: 3,
			CreatedAt:   time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			SearchID:    "def",
			Query:       core.SearchQuery{Goal: "logo design", CountryCode: "CA"},
			ResultCount: 0,
			CreatedAt:   time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		},
	}

	rendered, err := NewFormatter(FormatTable).FormatHistory(entries)
	require.NoError(t, err)
	require.Contains(t, rendered, "abc")
	require.Contains(t, rendered, "logo design")

	rendered, err = NewFormatter(FormatMarkdown).FormatHistory(entries)
	require.NoError(t, err)
	require.Contains(t, rendered, "| def | logo design | - | CA | 0 | 2026-03-16 09:00 UTC |")

	rendered, err = NewFormatter(FormatYAML).FormatHistory(entries)
	require.NoError(t, err)
	require.Contains(t, rendered, "search_id: abc")

	empty, err := NewFormatter(FormatTable).FormatHistory(nil)
	require.NoError(t, err)
	require.Equal(t, "No searches recorded.", empty)
}
