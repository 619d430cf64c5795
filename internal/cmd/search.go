package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/engine"
	"github.com/searchprobe/searchprobe/internal/observability"
	"github.com/searchprobe/searchprobe/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search [goal...]",
	Short: "Run a vendor search",
	Long: `Run a goal-driven vendor search against the backend and print the result set.

With --enrich, every vendor that came back without a rating is looked up through the
reverse lookup endpoint before the report is printed. Enrichment needs a location.`,
	Example: `  searchprobe search "violin tutor" --location "Austin, TX"
  searchprobe search --goal "logo design" --no-location --country CA --output-format json
  searchprobe search "plumber" --location Denver --enrich --out-dir ./reports`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addSearchFlags(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("goal", "", "what you are looking for (alternative to positional args)")
	cmd.Flags().String("location", "", "where to search; required unless --no-location")
	cmd.Flags().Bool("no-location", false, "search without a location (disables enrichment)")
	cmd.Flags().String("country", "", "ISO country code (default backend.country_code)")
	cmd.Flags().Bool("enrich", false, "look up ratings for unrated vendors")
	cmd.Flags().Bool("no-store", false, "do not record history or use the enrichment cache")
	addOutputFlags(cmd, true)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	query, err := buildQuery(cmd, args, cfg)
	if err != nil {
		return err
	}
	if err := query.Validate(); err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	enrich, _ := cmd.Flags().GetBool("enrich")
	noStore, _ := cmd.Flags().GetBool("no-store")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.CLILogger
	svc := newServices(ctx, cfg, logger, noStore)
	defer svc.Close()

	controller := svc.newController()
	defer controller.Close()

	result, err := controller.Search(ctx, query)
	if err != nil {
		return err
	}

	report := &output.Report{Query: query, Result: result}
	if enrich {
		outcomes, err := enrichReport(ctx, controller.State().Board, query)
		if err != nil {
			return err
		}
		report.Enrichment = outcomes
	}

	rendered, err := output.NewFormatter(format).FormatReport(report)
	if err != nil {
		return err
	}

	written, err := emit(cmd, format, query.Goal, rendered)
	if err != nil {
		return err
	}
	if written != stdoutTarget && logger != nil {
		logger.Info("Wrote search report", zap.String("path", written), zap.String("search_id", result.ID))
	}
	return nil
}

// enrichReport runs every pending lookup for the result set. Lookups that fail are
// reported in their outcome rather than failing the command.
func enrichReport(ctx context.Context, board *engine.EnrichmentBoard, query core.SearchQuery) ([]core.EnrichmentOutcome, error) {
	if board.Len() == 0 {
		return nil, nil
	}
	if !query.LocationBased {
		if observability.CLILogger != nil {
			observability.CLILogger.Warn("Skipping enrichment: search has no location")
		}
		return nil, nil
	}
	return board.EnrichAll(ctx, query.Location, query.CountryCode)
}

// buildQuery assembles a query from flags, positional args and config defaults.
func buildQuery(cmd *cobra.Command, args []string, cfg *config.Config) (core.SearchQuery, error) {
	goal, _ := cmd.Flags().GetString("goal")
	if strings.TrimSpace(goal) != "" && len(args) > 0 {
		return core.SearchQuery{}, fmt.Errorf("use either --goal or positional arguments, not both")
	}
	if strings.TrimSpace(goal) == "" {
		goal = strings.Join(args, " ")
	}

	location, _ := cmd.Flags().GetString("location")
	noLocation, _ := cmd.Flags().GetBool("no-location")
	country, _ := cmd.Flags().GetString("country")

	query := core.SearchQuery{
		Goal:          strings.TrimSpace(goal),
		Location:      strings.TrimSpace(location),
		CountryCode:   strings.ToUpper(strings.TrimSpace(country)),
		LocationBased: cfg.Backend.LocationBased,
	}
	if query.CountryCode == "" {
		query.CountryCode = cfg.Backend.CountryCode
	}
	if noLocation {
		if query.Location != "" {
			return core.SearchQuery{}, fmt.Errorf("--location and --no-location are mutually exclusive")
		}
		query.LocationBased = false
	} else if cmd.Flags().Changed("location") {
		query.LocationBased = true
	}
	return query, nil
}
