// Package version reports the build version of the cashflow binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X cashflow/internal/version.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info describes the running build
type Info struct {
	Version     string `json:"version"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
	VCSRevision string `json:"vcs_revision,omitempty"`
	VCSModified bool   `json:"vcs_modified"`
}

// Get collects the ldflags values and the VCS settings embedded by the Go toolchain
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.VCSRevision = s.Value
		case "vcs.modified":
			info.VCSModified = s.Value == "true"
		}
	}
	return info
}

// Revision returns the short commit hash, marked when the tree was dirty
func (i Info) Revision() string {
	rev := i.VCSRevision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if rev != "" && i.VCSModified {
		rev += "-dirty"
	}
	return rev
}

// String returns a one-line description for the version command
func (i Info) String() string {
	parts := []string{"cashflow " + i.Version}
	if rev := i.Revision(); rev != "" {
		parts = append(parts, "commit "+rev)
	}
	if i.BuildTime != "unknown" {
		parts = append(parts, "built "+i.BuildTime)
	}
	if i.GoVersion != "" {
		parts = append(parts, fmt.Sprintf("(%s)", i.GoVersion))
	}
	return strings.Join(parts, " ")
}
