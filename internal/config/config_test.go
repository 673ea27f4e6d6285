package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cmdtrace/internal/errors"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("CLAUDE_HOME", "")
	t.Setenv("OPENCODE_HOME", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := Load("", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".claude"), cfg.ClaudeHome)
	assert.Equal(t, filepath.Join(home, ".local", "share", "opencode"), cfg.OpenCodeHome)
	assert.Equal(t, filepath.Join(home, ".local", "share", "cmdtrace", "cmdtrace.sqlite"), cfg.DBPath)
	assert.Equal(t, []string{"agent-*"}, cfg.Exclude)
	assert.Equal(t, "importance", cfg.TagSort)
	assert.Equal(t, filepath.Join(home, ".claude", "projects"), cfg.ClaudeProjectsDir())
	assert.Equal(t, filepath.Join(home, ".local", "share", "opencode", "storage"), cfg.OpenCodeStorageDir())
}

func TestLoadPrecedence(t *testing.T) {
	home := isolateEnv(t)
	path := filepath.Join(home, "config.yml")
	body := `
claude_home: ~/from-file-claude
opencode_home: /from-file/opencode
tag_sort: usage-desc
exclude:
  - "agent-*"
  - "*.tmp.jsonl"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("OPENCODE_HOME", "/from-env/opencode")

	cfg, err := Load(path, Overrides{DBPath: "/tmp/flag.sqlite"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "from-file-claude"), cfg.ClaudeHome)
	assert.Equal(t, "/from-env/opencode", cfg.OpenCodeHome)
	assert.Equal(t, "/tmp/flag.sqlite", cfg.DBPath)
	assert.Equal(t, "usage-desc", cfg.TagSort)
	assert.Len(t, cfg.Exclude, 2)

	cfg, err = Load(path, Overrides{OpenCodeHome: "/from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "/from-flag", cfg.OpenCodeHome)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	home := isolateEnv(t)
	_, err := Load(filepath.Join(home, "nope.yml"), Overrides{})
	require.Error(t, err)
}

func TestLoadRejectsUnknownTagSort(t *testing.T) {
	home := isolateEnv(t)
	path := filepath.Join(home, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("tag_sort: random\n"), 0o644))

	_, err := Load(path, Overrides{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeConfigInvalid))
}

func TestDetectClaudeHome(t *testing.T) {
	isolateEnv(t)
	got, err := DetectClaudeHome("/x/y/")
	require.NoError(t, err)
	assert.Equal(t, "/x/y", got)

	t.Setenv("CLAUDE_HOME", "/env/claude")
	got, err = DetectClaudeHome("")
	require.NoError(t, err)
	assert.Equal(t, "/env/claude", got)
}

func TestDetectOpenCodeHomeXDG(t *testing.T) {
	isolateEnv(t)
	t.Setenv("XDG_DATA_HOME", "/data")
	got, err := DetectOpenCodeHome("")
	require.NoError(t, err)
	assert.Equal(t, "/data/opencode", got)
}
