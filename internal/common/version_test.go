package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadVersionFile(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })

	dir := t.TempDir()
	assert.Equal(t, original, LoadVersionFile(dir), "no file keeps the linked version")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".version"), []byte("  \n"), 0o644))
	assert.Equal(t, original, LoadVersionFile(dir), "blank file is ignored")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".version"), []byte("1.4.2\n"), 0o644))
	assert.Equal(t, "1.4.2", LoadVersionFile(dir))
	assert.Equal(t, "1.4.2", CurrentBuild().Version)
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{Version: "1.0.0", Build: "2026-01-02", GitCommit: "abc123"}
	assert.Equal(t, "1.0.0 (build: 2026-01-02, commit: abc123)", info.String())
	assert.NotEmpty(t, CurrentBuild().GoVersion)
}
