package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/core/store"
	"github.com/searchprobe/searchprobe/internal/observability"
	"github.com/searchprobe/searchprobe/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded searches",
	Long: `List searches recorded in the local store, newest first.

Use "history show <search-id>" to print a recorded result set with its feedback log,
and "history prune" to drop old entries and expired enrichment cache rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		goal, _ := cmd.Flags().GetString("goal")
		since, _ := cmd.Flags().GetDuration("since")

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.HistoryQuery{Limit: limit, Goal: strings.TrimSpace(goal)}
		if since > 0 {
			query.Since = time.Now().UTC().Add(-since)
		}
		entries, err := db.ListSearches(cmd.Context(), query)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatHistory(entries)
		if err != nil {
			return err
		}
		_, err = emit(cmd, format, "history", rendered)
		return err
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <search-id>",
	Short: "Show a recorded result set and its feedback log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entry, err := db.GetSearch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		feedback, err := db.ListFeedback(cmd.Context(), entry.SearchID)
		if err != nil {
			return err
		}

		rendered, err := renderRecordedSearch(format, entry, feedback)
		if err != nil {
			return err
		}
		_, err = emit(cmd, format, entry.SearchID, rendered)
		return err
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old history and expired enrichment cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		searches, err := db.PruneSearches(cmd.Context(), time.Now().UTC().Add(-olderThan))
		if err != nil {
			return err
		}
		enrichments, err := db.PurgeExpiredEnrichments(cmd.Context())
		if err != nil {
			return err
		}

		if observability.CLILogger != nil {
			observability.CLILogger.Info("Pruned local store",
				zap.Int64("searches", searches),
				zap.Int64("enrichments", enrichments))
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d search(es) and %d cached enrichment(s)\n", searches, enrichments)
		return err
	},
}

// renderRecordedSearch renders a stored search. Structured formats carry the feedback
// log alongside the report; text formats append it below.
func renderRecordedSearch(format output.Format, entry *store.HistoryEntry, feedback []store.FeedbackEntry) (string, error) {
	report := &output.Report{Query: entry.Query, Result: entry.Result}

	if format == output.FormatJSON {
		if feedback == nil {
			feedback = []store.FeedbackEntry{}
		}
		payload, err := json.MarshalIndent(struct {
			*output.Report
			RecordedAt time.Time             `json:"recorded_at"`
			Feedback   []store.FeedbackEntry `json:"feedback"`
		}{report, entry.CreatedAt, feedback}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}

	rendered, err := output.NewFormatter(format).FormatReport(report)
	if err != nil {
		return "", err
	}
	if format == output.FormatYAML {
		return rendered, nil
	}

	var sb strings.Builder
	sb.WriteString(rendered)
	sb.WriteString(fmt.Sprintf("\n\nRecorded %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04")))
	if len(feedback) == 0 {
		sb.WriteString("No feedback submitted.\n")
		return sb.String(), nil
	}
	sb.WriteString("Feedback:\n")
	for _, item := range feedback {
		status := "accepted"
		if !item.Accepted() {
			status = "failed: " + item.Error
		}
		line := fmt.Sprintf("  %s rating=%d %s", item.SubmittedAt.Local().Format("2006-01-02 15:04"), item.Rating, status)
		if item.Message != "" {
			line += fmt.Sprintf(" %q", item.Message)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String(), nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().Int("limit", 20, "maximum number of searches to list")
	historyCmd.Flags().String("goal", "", "only list searches whose goal contains this text")
	historyCmd.Flags().Duration("since", 0, "only list searches newer than this (e.g. 72h)")
	addOutputFlags(historyCmd, true)
	addOutputFlags(historyShowCmd, true)
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete searches recorded before this age")
}
