package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "voxhook", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "voxhook", "config.jsonc"), resolved)
}

func TestStateDirPrecedence(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	dir, err := StateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "voxhook"), dir)

	t.Setenv("XDG_STATE_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err = StateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "voxhook"), dir)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")

	want := Default()
	want.HooksFile = filepath.Join(dir, "hooks.yaml")
	want.Journal.Path = filepath.Join(state, "voxhook", "journal.db")
	require.Equal(t, want, loaded.Config)
}

func TestLoadExistingConfigAnchorsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	contents := `
{
  "hooks_file": "my-hooks.yaml",
  "journal": {"path": "/var/tmp/voxhook.db"},
  "paste": {"enable": false}
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, filepath.Join(dir, "my-hooks.yaml"), loaded.Config.HooksFile)
	require.Equal(t, "/var/tmp/voxhook.db", loaded.Config.Journal.Path)
	require.False(t, loaded.Config.Paste.Enable)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	tests := []struct {
		in   string
		want string
	}{
		{in: "~", want: "/home/tester"},
		{in: "~/hooks.yaml", want: "/home/tester/hooks.yaml"},
		{in: "~other/hooks.yaml", want: "~other/hooks.yaml"},
		{in: "/abs/hooks.yaml", want: "/abs/hooks.yaml"},
		{in: "hooks.yaml", want: "hooks.yaml"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ExpandHome(tc.in), tc.in)
	}
	require.Equal(t, "/home/tester/j.db", resolveRelative("/etc/voxhook/config.jsonc", "~/j.db"))
	require.Equal(t, "/etc/voxhook/j.db", resolveRelative("/etc/voxhook/config.jsonc", "j.db"))
}
