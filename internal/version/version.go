package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/openmotics-go/openmotics/internal/version.Version=v1.2.3 \
//	                   -X github.com/openmotics-go/openmotics/internal/version.Commit=abc123"
//
// If not set, they are populated from the module build info, falling back
// to "dev" with a timestamp.
var (
	// Version is the semantic version of the library and CLI
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

// product is the User-Agent product token sent to gateways
const product = "openmotics-go"

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo()
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// populateFromBuildInfo reads the module version and VCS settings embedded by
// the Go toolchain. When the library is imported by another program the
// dependency entry for this module carries the released version.
func populateFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "" {
		for _, dep := range info.Deps {
			if dep.Path == "github.com/openmotics-go/openmotics" && dep.Version != "(devel)" {
				Version = dep.Version
				break
			}
		}
	}

	var vcsRevision, vcsModified, vcsTime string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			vcsRevision = setting.Value
		case "vcs.modified":
			vcsModified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if Commit == "" && vcsRevision != "" {
		if len(vcsRevision) > 7 {
			Commit = vcsRevision[:7]
		} else {
			Commit = vcsRevision
		}
		if vcsModified == "true" {
			Commit += "-dirty"
		}
	}

	if Version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			Version = fmt.Sprintf("dev-%s", t.Format("20060102"))
		}
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent returns the User-Agent header value used for gateway requests
func UserAgent() string {
	return product + "/" + Version
}
