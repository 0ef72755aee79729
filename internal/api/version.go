package api

import (
	"net/http"
	"runtime"
)

// BuildInfo is stamped into the binary with -ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

type versionResponse struct {
	BuildInfo
	GoVersion string `json:"go_version"`
}

// VersionHandler serves build metadata. It is public.
func VersionHandler(info BuildInfo) http.Handler {
	response := versionResponse{BuildInfo: info.withDefaults(), GoVersion: runtime.Version()}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response)
	})
}
