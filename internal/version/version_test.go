package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	t.Helper()
	old := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
	t.Cleanup(func() { readBuildInfo = old })
}

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		commit   string
		settings []debug.BuildSetting
		expected string
	}{
		{name: "development build", version: "development", commit: "unknown", expected: "development"},
		{name: "release with commit", version: "1.0.0", commit: "abc1234", expected: "1.0.0+abc1234"},
		{
			name: "ldflags commit wins", version: "1.0.0", commit: "abc1234",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffffff"}},
			expected: "1.0.0+abc1234",
		},
		{
			name: "vcs revision", version: "development", commit: "unknown",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			expected: "development+0123456",
		},
		{
			name: "dirty tree", version: "0.3.0", commit: "",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "true"},
			},
			expected: "0.3.0+0123456-dirty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit := Version, Commit
			defer func() { Version, Commit = oldVersion, oldCommit }()
			withBuildInfo(t, tt.settings...)

			Version, Commit = tt.version, tt.commit
			assert.Equal(t, tt.expected, String())
		})
	}
}

func TestStringWithoutBuildInfo(t *testing.T) {
	old := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	defer func() { readBuildInfo = old }()

	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()
	Version, Commit = "2.0.0", "unknown"

	assert.Equal(t, "2.0.0", String())
}
