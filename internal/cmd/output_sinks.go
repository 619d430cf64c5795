package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/output"
)

const stdoutTarget = "-"

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

// reportFilename derives a safe --out-dir file name from a goal, search id or command name.
func reportFilename(name string, format output.Format) string {
	base := strings.Trim(nonFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-"), "-.")
	if base == "" {
		base = "output"
	}
	return base + "." + format.Extension()
}

func addOutputFlags(cmd *cobra.Command, withDir bool) {
	cmd.Flags().String("output-format", "table", "output format: table, json, markdown, yaml")
	cmd.Flags().String("out", "", "write output to a file (default stdout)")
	if withDir {
		cmd.Flags().String("out-dir", "", "write output to a generated file in this directory")
	}
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// outputTarget reads --out and --out-dir. It returns stdoutTarget when neither is set.
func outputTarget(cmd *cobra.Command, format output.Format, name string) (string, error) {
	out, _ := cmd.Flags().GetString("out")
	out = strings.TrimSpace(out)

	dir := ""
	if cmd.Flags().Lookup("out-dir") != nil {
		dir, _ = cmd.Flags().GetString("out-dir")
		dir = strings.TrimSpace(dir)
	}

	switch {
	case out != "" && dir != "":
		return "", fmt.Errorf("--out and --out-dir are mutually exclusive")
	case dir != "":
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve output directory: %w", err)
		}
		return filepath.Join(abs, reportFilename(name, format)), nil
	case out != "" && out != stdoutTarget:
		return out, nil
	default:
		return stdoutTarget, nil
	}
}

// emit writes rendered output where the flags point, ending it with a newline, and
// returns the target it wrote to.
func emit(cmd *cobra.Command, format output.Format, name, rendered string) (string, error) {
	target, err := outputTarget(cmd, format, name)
	if err != nil {
		return "", err
	}
	if rendered != "" && !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}

	if target == stdoutTarget {
		_, err := io.WriteString(cmd.OutOrStdout(), rendered)
		return target, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}
