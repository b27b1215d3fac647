package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/indicator"
	"github.com/rbright/voxhook/internal/ipc"
	"github.com/rbright/voxhook/internal/llm"
	"github.com/rbright/voxhook/internal/output"
	"github.com/rbright/voxhook/internal/pipeline"
	"github.com/rbright/voxhook/internal/session"
)

const (
	probeTimeout   = 180 * time.Millisecond
	acquireRetries = 8
)

// commandListen runs the daemon until ctx is cancelled.
func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, probeTimeout, acquireRetries)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: voxhook is already listening")
		} else {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}
	defer func() { _ = listener.Close() }()

	if err := r.listen(ctx, cfg, logger, listener.Addr().String(), func(ctx context.Context, handler ipc.Handler) error {
		return ipc.Serve(ctx, listener, handler)
	}); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("listen failed", "error", err.Error())
		return 1
	}
	return 0
}

func (r Runner) listen(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	socket string,
	serve func(context.Context, ipc.Handler) error,
) error {
	eng, err := r.buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer r.closeEngine(eng, cfg)

	asr, err := llm.NewTranscriber(ctx, cfg.ASR, asrBaseURL(cfg), r.Lookup)
	if err != nil {
		return err
	}

	ind := indicator.New(cfg.Indicator, logger)
	defer ind.Wait()

	ctrl := session.NewController(session.Options{
		Logger:      logger,
		Transcriber: pipeline.NewTranscriber(cfg, asr, logger),
		Dispatcher:  eng.dispatcher,
		Executor:    eng.executor,
		Hooks:       eng.registry,
		Journal:     eng.journalOrNil(),
		Indicator:   ind,
		Release:     releaseFunc(cfg),
	})

	logger.Info("listening", "socket", socket)
	fmt.Fprintf(r.Stdout, "voxhook listening on %s\n", socket)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return serve(groupCtx, ctrl) })
	group.Go(func() error { return ctrl.Run(groupCtx) })

	err = group.Wait()
	logger.Info("listener stopped")
	return err
}

// asrBaseURL shares llm.base_url with transcription only when both talk to Gemini.
func asrBaseURL(cfg config.Config) string {
	if cfg.LLM.Provider == config.ProviderGemini {
		return cfg.LLM.BaseURL
	}
	return ""
}

func releaseFunc(cfg config.Config) func(context.Context) error {
	if len(cfg.ReleaseCmd.Argv) == 0 {
		return nil
	}
	argv := cfg.ReleaseCmd.Argv
	return func(ctx context.Context) error {
		return output.RunCommand(ctx, argv, "")
	}
}
