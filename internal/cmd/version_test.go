package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/searchprobe/searchprobe/internal/server/handlers"
)

func TestPrintVersion(t *testing.T) {
	v := handlers.VersionResponse{
		App:          handlers.BuildInfo{Name: "searchprobe", Version: "1.4.0", Commit: "c0ffee", BuildDate: "2026-10-17"},
		Dependencies: handlers.DepInfo{Gofulmen: "0.3.0", Crucible: "0.4.0"},
		Runtime:      handlers.RuntimeInfo{GoVersion: "go1.25.0", Platform: "linux/amd64"},
	}

	var basic bytes.Buffer
	if err := printVersion(&basic, v, false, false); err != nil {
		t.Fatal(err)
	}
	if basic.String() != "searchprobe 1.4.0\n" {
		t.Fatalf("unexpected basic output %q", basic.String())
	}

	var extended bytes.Buffer
	if err := printVersion(&extended, v, true, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Commit:   c0ffee", "Go:       go1.25.0 (linux/amd64)", "Crucible: 0.4.0"} {
		if !strings.Contains(extended.String(), want) {
			t.Errorf("extended output missing %q:\n%s", want, extended.String())
		}
	}

	var asJSON bytes.Buffer
	if err := printVersion(&asJSON, v, false, true); err != nil {
		t.Fatal(err)
	}
	var decoded handlers.VersionResponse
	if err := json.Unmarshal(asJSON.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.App.Commit != "c0ffee" {
		t.Fatalf("unexpected json %s", asJSON.String())
	}
}
