package cmd

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	})
	Version, GitCommit, BuildDate = "1.4.0", "abc123def456", "2026-10-01T12:00:00Z"

	output, err := run(t, "version")
	require.NoError(t, err)

	assert.Contains(t, output, "TES Portal Server")
	assert.Contains(t, output, "Version:    1.4.0")
	assert.Contains(t, output, "Git commit: abc123def456")
	assert.Contains(t, output, "Build date: 2026-10-01T12:00:00Z")
	assert.Contains(t, output, runtime.Version())
	assert.Contains(t, output, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCommandRejectsArgs(t *testing.T) {
	_, err := run(t, "version", "extra")
	assert.Error(t, err)
}
