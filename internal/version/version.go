// Package version provides centralized version management for parley.
// It supports semantic versioning, build-time injection, and version validation.
package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags
var (
	// Version is the semantic version of the application
	Version = "0.1.0"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built
	BuildDate = "unknown"
)

// Info represents comprehensive version information
type Info struct {
	Version   string          `json:"version"`
	GitCommit string          `json:"gitCommit"`
	BuildDate string          `json:"buildDate"`
	GoVersion string          `json:"goVersion"`
	Platform  string          `json:"platform"`
	SemVer    *semver.Version `json:"-"`
}

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetBaseVersion returns the base version (major.minor.patch) without build metadata
func GetBaseVersion() string {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return Version
	}
	return fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch())
}

// GetInfo returns comprehensive version information
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}

	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SemVer:    sv,
	}, nil
}

// IsValid reports whether the compiled-in version parses as semver.
func IsValid() bool {
	_, err := semver.NewVersion(Version)
	return err == nil
}

// Compare compares two version strings. Returns -1, 0, or 1 when v1 is
// older than, equal to, or newer than v2.
func Compare(v1, v2 string) (int, error) {
	sv1, err := semver.NewVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}
	sv2, err := semver.NewVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}
	return sv1.Compare(sv2), nil
}
