package output

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/store"
)

// YAMLFormatter renders results as YAML using the same field names as the JSON output.
type YAMLFormatter struct{}

// FormatReport renders a search report as YAML.
func (f *YAMLFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return toYAML(report)
}

// FormatOutcomes renders enrichment outcomes as a YAML sequence.
func (f *YAMLFormatter) FormatOutcomes(outcomes []core.EnrichmentOutcome) (string, error) {
	if outcomes == nil {
		outcomes = []core.EnrichmentOutcome{}
	}
	return toYAML(outcomes)
}

// FormatHistory renders recorded searches as a YAML sequence.
func (f *YAMLFormatter) FormatHistory(entries []store.HistoryEntry) (string, error) {
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	return toYAML(entries)
}

// toYAML goes through JSON so field names and contact shapes match the JSON output,
// then decodes into a yaml.Node to keep key order.
func toYAML(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&doc)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		blockStyle(child)
	}
}
