package cmd

import (
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/engine"
)

func newSearchTestCmd(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addSearchFlags(cmd)
	if err := cmd.Flags().Parse(flags); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func testConfig() *config.Config {
	return &config.Config{Backend: config.BackendConfig{
		BaseURL:       "http://localhost:8000",
		CountryCode:   "US",
		LocationBased: true,
	}}
}

func TestBuildQueryFromArgs(t *testing.T) {
	cmd := newSearchTestCmd(t, "--location", " Austin, TX ")
	query, err := buildQuery(cmd, []string{"violin", "tutor"}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := core.SearchQuery{Goal: "violin tutor", Location: "Austin, TX", CountryCode: "US", LocationBased: true}
	if query != want {
		t.Fatalf("expected %+v, got %+v", want, query)
	}
}

func TestBuildQueryNoLocation(t *testing.T) {
	cmd := newSearchTestCmd(t, "--goal", "logo design", "--no-location", "--country", "ca")
	query, err := buildQuery(cmd, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query.LocationBased {
		t.Fatal("expected location gating off")
	}
	if query.CountryCode != "CA" {
		t.Fatalf("expected CA, got %q", query.CountryCode)
	}
	if err := query.Validate(); err != nil {
		t.Fatalf("expected valid query, got %v", err)
	}
}

func TestBuildQueryLocationEnablesGating(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.LocationBased = false

	cmd := newSearchTestCmd(t, "--location", "Denver")
	query, err := buildQuery(cmd, []string{"plumber"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !query.LocationBased {
		t.Fatal("expected --location to turn location gating on")
	}
}

func TestBuildQueryMissingLocationFailsValidation(t *testing.T) {
	cmd := newSearchTestCmd(t)
	query, err := buildQuery(cmd, []string{"plumber"}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := query.Validate(); err == nil {
		t.Fatal("expected validation error for missing location")
	}
}

func TestBuildQueryConflicts(t *testing.T) {
	cases := []struct {
		name  string
		flags []string
		args  []string
	}{
		{"goal and args", []string{"--goal", "a"}, []string{"b"}},
		{"location and no-location", []string{"--location", "x", "--no-location"}, []string{"a"}},
	}
	for _, tc := range cases {
		cmd := newSearchTestCmd(t, tc.flags...)
		if _, err := buildQuery(cmd, tc.args, testConfig()); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestEnrichReportSkipsWithoutLocation(t *testing.T) {
	result := &core.SearchResult{ID: "s1", Count: 1, Results: []core.Vendor{{Name: "Bow Shop"}}}
	board := engine.NewEnrichmentBoard(result, engine.BoardOptions{})
	defer board.Cancel()

	if board.Len() != 1 {
		t.Fatalf("expected one unrated vendor, got %d", board.Len())
	}
	outcomes, err := enrichReport(context.Background(), board, core.SearchQuery{Goal: "x", CountryCode: "US"})
	if err != nil || outcomes != nil {
		t.Fatalf("expected no outcomes, got %v, %v", outcomes, err)
	}

	outcomes, err = enrichReport(context.Background(), nil, core.SearchQuery{Goal: "x", Location: "Austin", CountryCode: "US", LocationBased: true})
	if err != nil || outcomes != nil {
		t.Fatalf("expected no outcomes for empty board, got %v, %v", outcomes, err)
	}
}
