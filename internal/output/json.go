package output

import (
	"encoding/json"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders a search report as JSON.
func (f *JSONFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatOutcomes renders enrichment outcomes as a JSON array.
func (f *JSONFormatter) FormatOutcomes(outcomes []core.EnrichmentOutcome) (string, error) {
	if outcomes == nil {
		outcomes = []core.EnrichmentOutcome{}
	}
	return f.marshal(outcomes)
}

// FormatHistory renders recorded searches as a JSON array.
func (f *JSONFormatter) FormatHistory(entries []store.HistoryEntry) (string, error) {
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	return f.marshal(entries)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
