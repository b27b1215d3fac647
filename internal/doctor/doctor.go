// Package doctor runs readiness diagnostics for config, hooks, credentials, tools, audio,
// and the dispatch journal.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/rbright/voxhook/internal/actions"
	"github.com/rbright/voxhook/internal/audio"
	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/journal"
	"github.com/rbright/voxhook/internal/llm"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

var (
	okLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	nameLabel = color.New(color.FgCyan).SprintFunc()
)

// String renders the report as user-facing text output. Colors follow color.NoColor.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := okLabel("OK")
		if !check.Pass {
			status = failLabel("FAIL")
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, nameLabel(check.Name), check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type runner struct {
	lookup       llm.LookupEnv
	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	client       *http.Client
}

// Run executes environment, config, and runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	r := runner{
		lookup:       os.LookupEnv,
		selectDevice: audio.SelectDevice,
		client:       &http.Client{Timeout: 2 * time.Second},
	}
	return r.run(ctx, loaded)
}

func (r runner) run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

	checks = append(checks, checkHooks(cfg.HooksFile))
	checks = append(checks, r.checkCredential("llm.credentials", cfg.LLM.Provider != config.ProviderOllama, cfg.LLM.APIKeyEnv))
	checks = append(checks, r.checkCredential("asr.credentials", true, cfg.ASR.APIKeyEnv))
	if cfg.LLM.Provider == config.ProviderOllama {
		checks = append(checks, r.checkOllama(ctx, cfg.LLM.BaseURL))
	}

	checks = append(checks, checkCommand(cfg.TypeCmd.Argv, "type_cmd"))
	checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard_cmd"))
	if cfg.Paste.Enable {
		if len(cfg.PasteCmd.Argv) > 0 {
			checks = append(checks, checkCommand(cfg.PasteCmd.Argv, "paste_cmd"))
		} else {
			checks = append(checks, checkBinary("hyprctl", "default paste path requires hyprctl"))
		}
	}
	if len(cfg.ReleaseCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.ReleaseCmd.Argv, "release_cmd"))
	}

	checks = append(checks, r.checkAudioSelection(ctx, cfg))
	checks = append(checks, checkJournal(cfg.Journal))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" with %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkHooks loads and builds the hooks file without registering anything live.
func checkHooks(path string) Check {
	file, found, err := actions.Load(path)
	if err != nil {
		return Check{Name: "hooks", Pass: false, Message: err.Error()}
	}

	reg := hook.NewRegistry()
	env := actions.Env{
		Writer:   discardWriter{},
		Run:      func(context.Context, []string, string) error { return nil },
		Dispatch: func(context.Context, string, string) error { return nil },
	}
	if err := file.Register(reg, env); err != nil {
		return Check{Name: "hooks", Pass: false, Message: err.Error()}
	}

	if !found {
		return Check{Name: "hooks", Pass: true, Message: fmt.Sprintf("%q not found; using built-in INSERT_TEXT", path)}
	}
	return Check{Name: "hooks", Pass: true, Message: fmt.Sprintf("%d hook(s) from %q", reg.Len(), path)}
}

type discardWriter struct{}

func (discardWriter) Type(context.Context, string) error  { return nil }
func (discardWriter) Paste(context.Context, string) error { return nil }

func (r runner) checkCredential(name string, required bool, envName string) Check {
	if !required {
		return Check{Name: name, Pass: true, Message: "not required"}
	}
	if _, err := llm.APIKey(r.lookup, envName); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is set", envName)}
}

// checkOllama probes the local Ollama server's model list endpoint.
func (r runner) checkOllama(ctx context.Context, baseURL string) Check {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return Check{Name: "ollama", Pass: false, Message: "llm.base_url is empty"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := strings.TrimRight(base, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "ollama", Pass: false, Message: err.Error()}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Check{Name: "ollama", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "ollama", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "ollama", Pass: true, Message: fmt.Sprintf("reachable at %s", base)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func (r runner) checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := r.selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkJournal opens the journal once. A lock held by the running daemon still passes.
func checkJournal(cfg config.JournalConfig) Check {
	if !cfg.Enable {
		return Check{Name: "journal", Pass: true, Message: "disabled"}
	}
	store, err := journal.Open(cfg.Path, cfg.MaxEntries)
	switch {
	case errors.Is(err, journal.ErrLocked):
		return Check{Name: "journal", Pass: true, Message: fmt.Sprintf("%q is held by the running daemon", cfg.Path)}
	case err != nil:
		return Check{Name: "journal", Pass: false, Message: err.Error()}
	}
	if err := store.Close(); err != nil {
		return Check{Name: "journal", Pass: false, Message: err.Error()}
	}
	return Check{Name: "journal", Pass: true, Message: fmt.Sprintf("writable at %q", cfg.Path)}
}
