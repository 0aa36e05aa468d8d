// Package version resolves the version string reported by the CLI.
package version

import (
	"runtime/debug"
	"strings"
)

// Version is set at build time via ldflags.
var Version = ""

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

// Current returns the effective version of the running binary.
func Current() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return resolve(Version, nil)
	}
	return resolve(Version, info)
}

// String returns the effective version string.
func String() string {
	return Current().Version
}

// resolve prefers an ldflags version, then the module version, then VCS info.
func resolve(v string, info *debug.BuildInfo) Info {
	out := Info{Version: v}
	if info == nil {
		if out.Version == "" {
			out.Version = "unknown"
		}
		return out
	}
	out.GoVersion = info.GoVersion

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.modified":
			out.Modified = setting.Value == "true"
		}
	}

	if out.Version != "" {
		return out
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		out.Version = info.Main.Version
		return out
	}
	if out.Revision != "" {
		ver := "devel+" + shortRevision(out.Revision)
		if out.Modified {
			ver += "+dirty"
		}
		out.Version = ver
		return out
	}
	out.Version = "devel"
	return out
}

// IsDevelopment reports whether v is a non-release version.
func IsDevelopment(v string) bool {
	if v == "" || v == "unknown" || v == "devel" {
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// shortRevision returns the first 12 chars of a revision.
func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
