package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/core/store"
	"github.com/searchprobe/searchprobe/internal/output"
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit state per backend route",
	Example: `  searchprobe rate-limit list
  searchprobe rate-limit list --backing-off --output-format json`,
	RunE: runRateLimitList,
}

func runRateLimitList(cmd *cobra.Command, args []string) error {
	format, err := tableOrJSON(cmd)
	if err != nil {
		return err
	}

	query, err := rateLimitQueryFromFlags(cmd)
	if err != nil {
		return err
	}

	db, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	entries, err := db.ListRateLimits(cmd.Context(), query)
	if err != nil {
		return err
	}

	rendered, err := renderRateLimits(format, entries, query.Now)
	if err != nil {
		return err
	}
	_, err = emit(cmd, format, "rate-limit.list", rendered)
	return err
}

func renderRateLimits(format output.Format, entries []store.RateLimitEntry, now time.Time) (string, error) {
	if format == output.FormatJSON {
		if entries == nil {
			entries = []store.RateLimitEntry{}
		}
		payload, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}

	lines := []string{"Rate Limits", ""}
	if len(entries) == 0 {
		lines = append(lines, "(no stored rate limit state)")
	}
	for _, entry := range entries {
		backoff := "-"
		if left := entry.State.BackoffRemaining(now); left > 0 {
			backoff = fmt.Sprintf("%s (%s left)", entry.State.BackoffUntil.UTC().Format(time.RFC3339), left.Round(time.Second))
		}
		lines = append(lines, fmt.Sprintf("%s: count=%d window_start=%s backoff_until=%s",
			entry.Route, entry.State.RequestCount, entry.State.WindowStart.UTC().Format(time.RFC3339), backoff))
	}
	return ascii.DrawBox(strings.Join(lines, "\n"), 0), nil
}

func init() {
	addRateLimitSelectorFlags(rateLimitListCmd)
	addOutputFlags(rateLimitListCmd, true)
}
