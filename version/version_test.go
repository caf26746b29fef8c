package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInfoFormatting verifies the short and long version strings.
func TestInfoFormatting(t *testing.T) {
	info := Info{
		Version:       "1.2.3",
		GitCommit:     "0123456789abcdef",
		GitCommitTime: "2024-05-01T10:00:00Z",
		GitTreeDirty:  true,
		GoVersion:     "go1.23.0",
	}

	assert.Equal(t, "0123456", info.ShortCommit())
	assert.Equal(t, "1.2.3+0123456.dirty", info.Short())
	assert.Equal(t, "2024-05-01 10:00:00 UTC", info.FormattedTime())

	long := info.String()
	assert.True(t, strings.HasPrefix(long, "chainfixture version 1.2.3\n"))
	assert.Contains(t, long, "0123456-dirty")
	assert.Contains(t, long, "go1.23.0")

	// The short form stays a valid semantic version
	parsed, err := Info{Version: info.Short()}.SemVer()
	require.NoError(t, err)
	assert.EqualValues(t, 2, parsed.Minor())
}

// TestGetInfo verifies the default version is a valid semantic version.
func TestGetInfo(t *testing.T) {
	info := GetInfo()
	_, err := info.SemVer()
	assert.NoError(t, err)
	assert.Equal(t, "unknown", Info{}.FormattedTime())
}
