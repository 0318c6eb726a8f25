package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semverRegex.MatchString(Version), "Version should follow semver format, got: %s", Version)
}

func TestString_ContainsBuildInfo(t *testing.T) {
	str := String()

	assert.Contains(t, str, "ragcontext "+Version)
	assert.Contains(t, str, "commit")
	assert.Contains(t, str, runtime.Version())
}

func TestShort_ReturnsVersion(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_ReturnsInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Name, info.Name)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.NotEmpty(t, info.Commit)
}

func TestApplyVCS(t *testing.T) {
	tests := []struct {
		name         string
		commit, date string
		settings     []debug.BuildSetting
		wantCommit   string
		wantDate     string
		wantModified bool
	}{
		{
			name:   "fills unknown fields",
			commit: "unknown", date: "unknown",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "0123456789ab", wantDate: "2026-01-02T03:04:05Z", wantModified: true,
		},
		{
			name:   "ldflags win",
			commit: "abc1234", date: "2026-02-01",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "ffffffffffff"},
				{Key: "vcs.time", Value: "2020-01-01T00:00:00Z"},
			},
			wantCommit: "abc1234", wantDate: "2026-02-01",
		},
		{
			name:   "no vcs stamp",
			commit: "unknown", date: "unknown",
			wantCommit: "unknown", wantDate: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := BuildInfo{Commit: tt.commit, Date: tt.date}

			applyVCS(&info, tt.settings)

			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantDate, info.Date)
			assert.Equal(t, tt.wantModified, info.Modified)
		})
	}
}

func TestGetInfo_IsJSONSerializable(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	for _, key := range []string{"name", "version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, key)
	}
}
