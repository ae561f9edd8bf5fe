// Package version provides build and protocol version information.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time using -ldflags
var (
	// Name is the application name
	Name = "wfd-manager"

	// Version is the semantic version (set via -ldflags at build time)
	Version = "0.1.0"

	// BuildTime is the build timestamp (set via -ldflags at build time)
	BuildTime = ""

	// GitCommit is the git commit hash (set via -ldflags at build time)
	GitCommit = ""
)

// APIVersion is the version prefix of the HTTP API.
const APIVersion = "v1"

// Info contains version information
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	API       string `json:"api"`
	GoVersion string `json:"goVersion"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the current version information
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		API:       APIVersion,
		GoVersion: runtime.Version(),
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// String returns a formatted version string
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", shortCommit(i.GitCommit))
	}
	if i.BuildTime != "" {
		s += fmt.Sprintf(" built %s", i.BuildTime)
	}
	return s
}

// TXT returns the entries advertised in the mDNS TXT record.
func (i Info) TXT() map[string]string {
	txt := map[string]string{
		"version": i.Version,
		"api":     "/api/" + i.API,
	}
	if i.GitCommit != "" {
		txt["commit"] = shortCommit(i.GitCommit)
	}
	return txt
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
