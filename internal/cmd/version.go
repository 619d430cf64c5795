package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/server/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. --extended adds commit, build, Go and library versions; --json prints the same document /version serves.",
	RunE: func(cmd *cobra.Command, args []string) error {
		extended, _ := cmd.Flags().GetBool("extended")
		asJSON, _ := cmd.Flags().GetBool("json")
		return printVersion(cmd.OutOrStdout(), handlers.CurrentVersion(), extended, asJSON)
	},
}

func printVersion(out io.Writer, v handlers.VersionResponse, extended, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	fmt.Fprintf(out, "%s %s\n", v.App.Name, v.App.Version)
	if !extended {
		return nil
	}
	fmt.Fprintf(out, "Commit:   %s\n", v.App.Commit)
	fmt.Fprintf(out, "Built:    %s\n", v.App.BuildDate)
	fmt.Fprintf(out, "Go:       %s (%s)\n", v.Runtime.GoVersion, v.Runtime.Platform)
	fmt.Fprintf(out, "Gofulmen: %s\n", v.Dependencies.Gofulmen)
	fmt.Fprintf(out, "Crucible: %s\n", v.Dependencies.Crucible)
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("extended", "e", false, "show extended version information")
	versionCmd.Flags().Bool("json", false, "print version information as JSON")
}
