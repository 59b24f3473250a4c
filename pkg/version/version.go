// Package version reports what amanlex binary is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
)

// Name is the program name reported to clients.
const Name = "amanlex"

// Set with -ldflags "-X github.com/Aman-CERP/amanlex/pkg/version.Version=...".
// When unset, Get falls back to the module build info.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// trackedDeps are the libraries whose version decides index compatibility
// or model client behavior.
var trackedDeps = []string{
	"github.com/blevesearch/bleve/v2",
	"github.com/coder/hnsw",
	"modernc.org/sqlite",
	"github.com/jackc/pgx/v5",
	"github.com/modelcontextprotocol/go-sdk",
}

// Info describes the running binary.
type Info struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Date      string            `json:"date"`
	Modified  bool              `json:"modified,omitempty"`
	GoVersion string            `json:"go_version"`
	OS        string            `json:"os"`
	Arch      string            `json:"arch"`
	Deps      map[string]string `json:"deps,omitempty"`
}

var (
	infoOnce sync.Once
	info     Info
)

// Get returns the build description, computed once.
func Get() Info {
	infoOnce.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			Date:      Date,
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			fromBuildInfo(&info, bi)
		}
	})
	return info
}

// fromBuildInfo fills fields the linker flags left at their defaults.
func fromBuildInfo(in *Info, bi *debug.BuildInfo) {
	if in.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		in.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if in.Commit == "unknown" && len(s.Value) >= 7 {
				in.Commit = s.Value[:7]
			}
		case "vcs.time":
			if in.Date == "unknown" {
				in.Date = s.Value
			}
		case "vcs.modified":
			in.Modified = s.Value == "true"
		}
	}
	for _, dep := range bi.Deps {
		for _, want := range trackedDeps {
			if dep.Path == want {
				if in.Deps == nil {
					in.Deps = make(map[string]string)
				}
				in.Deps[dep.Path] = dep.Version
			}
		}
	}
}

// String is the one-line description printed by `amanlex version`.
func String() string {
	i := Get()
	dirty := ""
	if i.Modified {
		dirty = "+dirty"
	}
	return fmt.Sprintf("%s %s (commit %s%s, built %s, %s %s/%s)",
		Name, i.Version, i.Commit, dirty, i.Date, i.GoVersion, i.OS, i.Arch)
}

// Short is the bare version.
func Short() string { return Get().Version }

// DepLines lists tracked dependency versions as "path version", sorted.
func DepLines() []string {
	deps := Get().Deps
	lines := make([]string, 0, len(deps))
	for path, v := range deps {
		lines = append(lines, path+" "+v)
	}
	sort.Strings(lines)
	return lines
}

// UserAgent identifies outbound requests to model providers.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", Name, Short(), runtime.GOOS, runtime.GOARCH)
}
