// Package version resolves the daemon build version and carries the
// API version surfaced on the versioned route tree.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Build information populated via -ldflags at build time by CI.
// Defaults are meaningful for local development and tests.
var (
	// BuildVersion is the semantic version of the built binary.
	BuildVersion = "0.0.0-dev"
	// BuildCommit is the VCS commit SHA associated with the build.
	BuildCommit = "unknown"
	// BuildDate is the ISO-8601 timestamp of the build.
	BuildDate = "unknown"
)

// APIVersion names the versioned route tree (/text/v1).
const APIVersion = "v1"

// LatestVersion is the newest API version the daemon serves.
const LatestVersion = APIVersion

// SupportedVersions lists every API version the daemon serves.
var SupportedVersions = []string{APIVersion}

// Resolve returns the best available build version: the -ldflags value
// when set, else the module version the toolchain recorded, else the
// dev default.
func Resolve() string {
	if BuildVersion != "" && BuildVersion != "0.0.0-dev" {
		return BuildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return BuildVersion
}

// Long renders the full version line for -version output.
func Long() string {
	return fmt.Sprintf("texttransformd %s (commit %s, built %s)", Resolve(), BuildCommit, BuildDate)
}

// Headers returns the API version headers attached to versioned
// responses.
func Headers() map[string]string {
	return map[string]string{
		"X-API-Version":            APIVersion,
		"X-API-Latest-Version":     LatestVersion,
		"X-API-Supported-Versions": strings.Join(SupportedVersions, ","),
	}
}
