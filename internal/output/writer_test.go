package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/voxhook/internal/config"
)

func TestRunCommandWritesStdin(t *testing.T) {
	script := writeStdinCaptureScript(t)
	target := filepath.Join(t.TempDir(), "stdin.txt")

	require.NoError(t, RunCommand(context.Background(), []string{script, target}, "hello from voxhook"))
	requireFileContent(t, target, "hello from voxhook")
}

func TestRunCommandErrors(t *testing.T) {
	require.ErrorIs(t, RunCommand(context.Background(), nil, "payload"), ErrEmptyCommand)

	err := RunCommand(context.Background(), []string{writeFailScript(t, "no display")}, "")
	require.ErrorContains(t, err, "no display")
}

func TestWriterTypeUsesTypeCommand(t *testing.T) {
	script := writeStdinCaptureScript(t)
	target := filepath.Join(t.TempDir(), "typed.txt")

	cfg := config.Default()
	cfg.TypeCmd = config.CommandConfig{Argv: []string{script, target}}

	w := NewWriter(cfg, nil)
	require.NoError(t, w.Type(context.Background(), "hello world"))
	requireFileContent(t, target, "hello world")

	require.NoError(t, w.Type(context.Background(), ""))
}

func TestWriterTypeFailure(t *testing.T) {
	cfg := config.Default()
	cfg.TypeCmd = config.CommandConfig{Argv: []string{writeFailScript(t, "wtype missing")}}

	err := NewWriter(cfg, nil).Type(context.Background(), "x")
	require.ErrorContains(t, err, "type text")
}

func TestWriterPaste(t *testing.T) {
	tests := []struct {
		name      string
		enable    bool
		pasteFail bool
	}{
		{name: "clipboard only", enable: false},
		{name: "paste command failure keeps clipboard", enable: true, pasteFail: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clipboard := filepath.Join(t.TempDir(), "clipboard.txt")

			cfg := config.Default()
			cfg.Clipboard = config.CommandConfig{Argv: []string{writeStdinCaptureScript(t), clipboard}}
			cfg.Paste.Enable = tc.enable
			if tc.pasteFail {
				cfg.PasteCmd = config.CommandConfig{Argv: []string{writeFailScript(t, "paste failed")}}
			}

			require.NoError(t, NewWriter(cfg, nil).Paste(context.Background(), "captured text"))
			requireFileContent(t, clipboard, "captured text")
		})
	}
}

func TestWriterPasteDefaultShortcutFailureStillSucceeds(t *testing.T) {
	clipboard := filepath.Join(t.TempDir(), "clipboard.txt")
	t.Setenv("HYPR_ACTIVEWINDOW_JSON", `{"address":""}`)
	installHyprctlPasteStub(t)

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{writeStdinCaptureScript(t), clipboard}}
	cfg.Paste.Enable = true

	require.NoError(t, NewWriter(cfg, nil).Paste(context.Background(), "captured text"))
	requireFileContent(t, clipboard, "captured text")
}

func TestWriterPasteClipboardFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{writeFailScript(t, "clipboard failed")}}

	err := NewWriter(cfg, nil).Paste(context.Background(), "x")
	require.ErrorContains(t, err, "set clipboard")
}

func TestWriterPasteSkipsEmptyText(t *testing.T) {
	clipboard := filepath.Join(t.TempDir(), "clipboard.txt")
	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{writeStdinCaptureScript(t), clipboard}}

	require.NoError(t, NewWriter(cfg, nil).Paste(context.Background(), ""))
	_, err := os.Stat(clipboard)
	require.True(t, os.IsNotExist(err))
}

func requireFileContent(t *testing.T, path string, want string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, want, string(data))
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture-stdin.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\ncat > \"$1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fail.sh")
	script := "#!/usr/bin/env bash\necho \"" + message + "\" >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
