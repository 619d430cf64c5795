package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/core/store"
	"github.com/searchprobe/searchprobe/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect or reset persisted backend rate limit state",
	Long: `The client throttles itself per backend route (search, reverse-lookup, feedback)
and remembers 429 backoffs in the local store. These commands inspect and clear
that state.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

func addRateLimitSelectorFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("all", false, "select every route")
	cmd.Flags().String("route", "", "select a single route (exact match)")
	cmd.Flags().String("prefix", "", "select routes with this prefix")
	cmd.Flags().Bool("backing-off", false, "only routes still in a 429 backoff")
}

// rateLimitQueryFromFlags builds the row selection. list selects everything when no
// selector is given; reset insists on one.
func rateLimitQueryFromFlags(cmd *cobra.Command) (store.RateLimitQuery, error) {
	all, _ := cmd.Flags().GetBool("all")
	route, _ := cmd.Flags().GetString("route")
	prefix, _ := cmd.Flags().GetString("prefix")
	backingOff, _ := cmd.Flags().GetBool("backing-off")

	query := store.RateLimitQuery{
		All:        all,
		Route:      strings.TrimSpace(route),
		Prefix:     strings.TrimSpace(prefix),
		BackingOff: backingOff,
		Now:        time.Now().UTC(),
	}

	selectors := 0
	for _, set := range []bool{query.All, query.Route != "", query.Prefix != ""} {
		if set {
			selectors++
		}
	}
	if selectors > 1 {
		return query, fmt.Errorf("--all, --route and --prefix are mutually exclusive")
	}
	if selectors == 0 && cmd.Name() == "list" {
		query.All = true
	}
	return query, query.Validate()
}

func tableOrJSON(cmd *cobra.Command) (output.Format, error) {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return "", err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
	return format, nil
}
