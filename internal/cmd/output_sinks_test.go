package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/searchprobe/searchprobe/internal/output"
)

func outputCmd(t *testing.T, withDir bool, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd, withDir)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	return cmd, &stdout
}

func TestReportFilename(t *testing.T) {
	cases := []struct {
		name   string
		format output.Format
		want   string
	}{
		{"Violin Tutor", output.FormatMarkdown, "violin-tutor.md"},
		{"  ../etc  ", output.FormatJSON, "etc.json"},
		{"rate-limit.list", output.FormatTable, "rate-limit.list.txt"},
		{"???", output.FormatYAML, "output.yaml"},
	}
	for _, tc := range cases {
		if got := reportFilename(tc.name, tc.format); got != tc.want {
			t.Errorf("reportFilename(%q, %s) = %q, want %q", tc.name, tc.format, got, tc.want)
		}
	}
}

func TestEmitToStdout(t *testing.T) {
	cmd, stdout := outputCmd(t, true)

	target, err := emit(cmd, output.FormatTable, "history", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target != stdoutTarget || stdout.String() != "hello\n" {
		t.Fatalf("got target %q, stdout %q", target, stdout.String())
	}
}

func TestEmitToOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	cmd, stdout := outputCmd(t, true, "--out-dir", dir)

	target, err := emit(cmd, output.FormatMarkdown, "Violin Tutor", "# report\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target != filepath.Join(dir, "violin-tutor.md") {
		t.Fatalf("unexpected target %q", target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# report\n" || stdout.Len() != 0 {
		t.Fatalf("unexpected contents %q (stdout %q)", data, stdout.String())
	}
}

func TestEmitToOutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	cmd, _ := outputCmd(t, false, "--out", path)

	target, err := emit(cmd, output.FormatJSON, "ignored", "{}")
	if err != nil || target != path {
		t.Fatalf("got %q, %v", target, err)
	}
	if data, _ := os.ReadFile(path); string(data) != "{}\n" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestEmitRejectsOutAndOutDir(t *testing.T) {
	cmd, _ := outputCmd(t, true, "--out-dir", t.TempDir(), "--out", "x.txt")
	if _, err := emit(cmd, output.FormatTable, "x", "x"); err == nil {
		t.Fatal("expected --out and --out-dir to conflict")
	}
}
