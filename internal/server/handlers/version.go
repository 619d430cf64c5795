package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo identifies the running binary. main fills it from ldflags.
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// VersionResponse is the /version body and the `version --json` output.
type VersionResponse struct {
	App          BuildInfo   `json:"app"`
	Backend      string      `json:"backend_url,omitempty"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

var (
	versionMu  sync.RWMutex
	buildInfo  = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	backendURL string
)

// SetBuildInfo replaces the reported build identity. Empty fields keep their defaults.
func SetBuildInfo(info BuildInfo) {
	versionMu.Lock()
	defer versionMu.Unlock()
	if info.Name != "" {
		buildInfo.Name = info.Name
	}
	if info.Version != "" {
		buildInfo.Version = info.Version
	}
	if info.Commit != "" {
		buildInfo.Commit = info.Commit
	}
	if info.BuildDate != "" {
		buildInfo.BuildDate = info.BuildDate
	}
}

// SetBackendURL records the search backend the server talks to.
func SetBackendURL(url string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	backendURL = url
}

// CurrentVersion snapshots build, dependency and runtime details.
func CurrentVersion() VersionResponse {
	versionMu.RLock()
	app, backend := buildInfo, backendURL
	versionMu.RUnlock()

	if app.Name == "" && len(os.Args) > 0 && os.Args[0] != "" {
		app.Name = filepath.Base(os.Args[0])
	}

	deps := crucible.GetVersion()
	return VersionResponse{
		App:     app,
		Backend: backend,
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			GoVersion:     runtime.Version(),
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}
}

// VersionHandler serves CurrentVersion.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion())
}
