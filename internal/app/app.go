// Package app wires parsed CLI commands to the daemon, the IPC client, and the dispatch engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/voxhook/internal/audio"
	"github.com/rbright/voxhook/internal/cli"
	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/dispatch"
	"github.com/rbright/voxhook/internal/doctor"
	"github.com/rbright/voxhook/internal/ipc"
	"github.com/rbright/voxhook/internal/journal"
	"github.com/rbright/voxhook/internal/llm"
	"github.com/rbright/voxhook/internal/logging"
	"github.com/rbright/voxhook/internal/session"
	"github.com/rbright/voxhook/internal/version"
)

const (
	binaryName     = "voxhook"
	forwardTimeout = 220 * time.Millisecond
)

// Runner executes one CLI invocation.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Lookup resolves credential variables; os.LookupEnv when nil.
	Lookup llm.LookupEnv
	// NewService builds the language backend; llm.New when nil.
	NewService ServiceFactory
}

// Execute runs args with production collaborators and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	logRuntime.SetVerbose(cfgLoaded.Config.Debug.Verbose)
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandListen:
		return r.commandListen(ctx, cfgLoaded.Config, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStart, cli.CommandStop, cli.CommandToggle, cli.CommandCancel:
		return r.forwardOrFail(ctx, string(parsed.Command))
	case cli.CommandSay:
		return r.commandSay(ctx, cfgLoaded.Config, parsed.Text, logger)
	case cli.CommandHooks:
		return r.commandHooks(ctx, cfgLoaded.Config, logger)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfgLoaded.Config, parsed.Limit)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := r.forward(ctx, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	fmt.Fprintln(r.Stdout, resp.State)
	if resp.Outcome != nil {
		fmt.Fprintf(r.Stdout, "last: %s\n", resp.Outcome.Summary())
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, handled, err := r.forward(ctx, ipc.Request{Command: command}, forwardTimeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no running voxhook daemon; start one with `voxhook listen`\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandSay forwards to the daemon and falls back to an in-process dispatch.
func (r Runner) commandSay(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	resp, handled, err := r.forward(ctx, ipc.Request{Command: ipc.CommandSay, Text: text}, sayTimeout(cfg))
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		return r.printOutcome(resp.Outcome)
	}

	eng, err := r.buildEngine(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer r.closeEngine(eng, cfg)

	ctrl := session.NewController(session.Options{
		Logger:     logger,
		Dispatcher: eng.dispatcher,
		Executor:   eng.executor,
		Hooks:      eng.registry,
		Journal:    eng.journalOrNil(),
	})
	defer ctrl.Close()

	rec, err := ctrl.Say(ctx, text)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return r.printOutcome(&rec)
}

func (r Runner) printOutcome(rec *journal.Record) int {
	if rec == nil {
		fmt.Fprintln(r.Stderr, "error: daemon returned no outcome")
		return 1
	}
	fmt.Fprintln(r.Stdout, rec.Summary())
	if dispatch.Kind(rec.Kind) == dispatch.KindFailed {
		return 1
	}
	return 0
}

func (r Runner) commandHooks(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	resp, handled, err := r.forward(ctx, ipc.Request{Command: ipc.CommandHooks}, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		r.printHooks(resp.Hooks)
		return 0
	}

	reg, _, err := loadRegistry(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printHooks(session.Summaries(reg.List()))
	return 0
}

func (r Runner) printHooks(hooks []ipc.HookSummary) {
	if len(hooks) == 0 {
		fmt.Fprintln(r.Stdout, "no hooks registered")
		return
	}
	for _, h := range hooks {
		fmt.Fprintf(r.Stdout, "%s\t%s", h.ID, h.Matching)
		if len(h.Params) > 0 {
			fmt.Fprintf(r.Stdout, "\t(%s)", strings.Join(h.Params, ", "))
		}
		fmt.Fprintln(r.Stdout)
	}
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, limit int) int {
	resp, handled, err := r.forward(ctx, ipc.Request{Command: ipc.CommandHistory, Limit: limit}, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		r.printHistory(resp.History)
		return 0
	}

	if !cfg.Journal.Enable {
		fmt.Fprintln(r.Stderr, "error: journal is disabled")
		return 1
	}
	store, err := journal.Open(cfg.Journal.Path, cfg.Journal.MaxEntries)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printHistory(records)
	return 0
}

func (r Runner) printHistory(records []journal.Record) {
	if len(records) == 0 {
		fmt.Fprintln(r.Stdout, "no history")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(r.Stdout, "%d\t%s\t%s\t%q\t%s\n",
			rec.Seq,
			rec.At.Local().Format(time.DateTime),
			rec.Source,
			rec.Transcript,
			rec.Summary(),
		)
	}
}

// forward sends req to the daemon. handled is false when no daemon is listening.
func (r Runner) forward(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, nil
	}
	return tryForward(ctx, socketPath, req, timeout)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		return resp, true, resp.Err()
	}
	if ipc.NotRunning(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

// sayTimeout bounds a forwarded say by the full resolve, extract, and callback budget.
func sayTimeout(cfg config.Config) time.Duration {
	callback := cfg.Dispatch.CallbackTimeout()
	if callback <= 0 {
		callback = 30 * time.Second
	}
	return cfg.Dispatch.ResolveTimeout() + cfg.Dispatch.ExtractTimeout() + callback + 2*time.Second
}

func (r Runner) closeEngine(eng *engine, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := eng.Close(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
	}
}
