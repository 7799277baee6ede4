// Package version reports the dashsync build version.
package version

import "runtime/debug"

// Set at build time with -ldflags "-X".
var (
	Version = "development"
	Commit  = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// String returns Version, suffixed with the commit when one is known. The
// commit falls back to the VCS revision embedded by the Go toolchain.
func String() string {
	commit := Commit
	if commit == "unknown" || commit == "" {
		commit = vcsRevision()
	}
	if commit == "" {
		return Version
	}
	return Version + "+" + commit
}

// vcsRevision returns the short VCS revision, marked when the tree was dirty.
func vcsRevision() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}
