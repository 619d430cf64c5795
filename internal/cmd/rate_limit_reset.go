package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/core/store"
	"github.com/searchprobe/searchprobe/internal/output"
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored rate limit state",
	Long: `Delete stored limiter windows and backoffs so the next call to a route starts fresh.

Select rows with exactly one of --all, --route or --prefix. Add --backing-off to only clear
routes that are still waiting out a 429.`,
	Example: `  searchprobe rate-limit reset --route search
  searchprobe rate-limit reset --all --backing-off --yes
  searchprobe rate-limit reset --all --dry-run`,
	RunE: runRateLimitReset,
}

func runRateLimitReset(cmd *cobra.Command, args []string) error {
	format, err := tableOrJSON(cmd)
	if err != nil {
		return err
	}

	query, err := rateLimitQueryFromFlags(cmd)
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if query.All && !yes && !dryRun {
		return errors.New("--all requires --yes (or use --dry-run)")
	}

	db, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	report, err := db.ResetRateLimits(cmd.Context(), query, dryRun)
	if err != nil {
		return err
	}

	rendered, err := renderRateLimitReset(format, report)
	if err != nil {
		return err
	}
	_, err = emit(cmd, format, "rate-limit.reset", rendered)
	return err
}

func renderRateLimitReset(format output.Format, report store.RateLimitReset) (string, error) {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}
	switch {
	case report.DryRun:
		return fmt.Sprintf("Would delete %d rate limit entr(ies)", report.Matched), nil
	case report.Matched == 0:
		return "No matching rate limit entries", nil
	default:
		return fmt.Sprintf("Deleted %d/%d rate limit entr(ies)", report.Deleted, report.Matched), nil
	}
}

func init() {
	addRateLimitSelectorFlags(rateLimitResetCmd)
	rateLimitResetCmd.Flags().Bool("yes", false, "confirm destructive reset")
	rateLimitResetCmd.Flags().Bool("dry-run", false, "show what would be deleted")
	addOutputFlags(rateLimitResetCmd, true)
}
