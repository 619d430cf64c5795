package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/core/engine"
	"github.com/searchprobe/searchprobe/internal/core/store"
	"github.com/searchprobe/searchprobe/internal/observability"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit feedback on a recorded search",
	Long: `Submit a rating (0-10) and an optional message for a search recorded in the
local store. The recorded result set is sent along as the snapshot the rating
refers to. Without --search-id the most recent search is used.`,
	Example: `  searchprobe feedback --rating 8 --message "good matches"
  searchprobe feedback --search-id 4f1c0c2e --rating 3`,
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().String("search-id", "", "recorded search to rate (default most recent)")
	feedbackCmd.Flags().String("rating", "", "rating from 0 to 10")
	feedbackCmd.Flags().String("message", "", "free-form feedback")
	_ = feedbackCmd.MarkFlagRequired("rating")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	searchID, _ := cmd.Flags().GetString("search-id")
	rating, _ := cmd.Flags().GetString("rating")
	message, _ := cmd.Flags().GetString("message")

	// Reject bad ratings before touching the store.
	if _, err := engine.ParseRating(rating); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc := newServices(ctx, cfg, observability.CLILogger, false)
	defer svc.Close()
	if svc.store == nil {
		return errors.New("feedback needs the local store to load the recorded result set")
	}

	entry, err := recordedSearch(ctx, svc.store, searchID)
	if err != nil {
		return err
	}

	submitter := engine.NewFeedbackSubmitter(entry.Result, entry.Query.Goal, svc.submitterOptions())
	submitter.SetDraft(message, rating)

	ack, err := submitter.Submit(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Feedback for %s accepted (status %d)\n", ack.SearchID, ack.StatusCode)
	return err
}

// recordedSearch loads searchID, or the newest recorded search when searchID is empty.
func recordedSearch(ctx context.Context, db *store.Store, searchID string) (*store.HistoryEntry, error) {
	searchID = strings.TrimSpace(searchID)
	if searchID == "" {
		latest, err := db.ListSearches(ctx, store.HistoryQuery{Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(latest) == 0 {
			return nil, store.ErrSearchNotFound
		}
		searchID = latest[0].SearchID
	}
	return db.GetSearch(ctx, searchID)
}
