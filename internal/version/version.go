// Package version provides build information for iptv-checker.
//
// Version, Commit and Date are injected at build time:
//
//	go build -ldflags "-X github.com/Jelikton/iptv-checker/internal/version.Version=x.y.z \
//	                   -X github.com/Jelikton/iptv-checker/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/Jelikton/iptv-checker/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "iptv-checker"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns all version information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func shortCommit() string {
	if Commit == "unknown" || len(Commit) < 8 {
		return ""
	}
	return Commit[:8]
}

// String returns a human-readable version string.
func String() string {
	info := GetInfo()
	if c := shortCommit(); c != "" {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, c, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the version with the abbreviated commit, if known.
func Short() string {
	if c := shortCommit(); c != "" {
		return fmt.Sprintf("%s (%s)", Version, c)
	}
	return Version
}

// UserAgent returns the User-Agent sent with probes and guide requests.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// UserAgentOr returns override when it is not blank, else UserAgent.
func UserAgentOr(override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return UserAgent()
}
