package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/ternarybob/rateprobe/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", b.Version, b.Build, b.GitCommit)
}

// CurrentBuild returns the linked build info. A commit missing from ldflags
// falls back to the VCS stamp of the module build.
func CurrentBuild() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Build:     Build,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
	if info.GitCommit != "unknown" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				info.GitCommit = s.Value
			}
		}
	}
	return info
}

// LoadVersionFile sets Version from a non-empty .version file in dir.
// An empty dir means the directory of the executable.
func LoadVersionFile(dir string) string {
	if dir == "" {
		exePath, err := os.Executable()
		if err != nil {
			return Version
		}
		dir = filepath.Dir(exePath)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".version"))
	if err != nil {
		return Version
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		Version = v
	}
	return Version
}
