// Package indicator shows session state through compositor or desktop notifications and
// plays audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/hypr"
)

const (
	colorRecording  = "rgb(89b4fa)"
	colorProcessing = "rgb(cba6f7)"
	colorNotice     = "rgb(a6e3a1)"
	colorError      = "rgb(f38ba8)"

	stickyTimeoutMS  = 300000
	defaultErrorMS   = 1200
	operationTimeout = 400 * time.Millisecond
)

// Controller is the session-facing indicator contract.
type Controller interface {
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowNotice(context.Context, string)
	ShowError(context.Context, string)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// Notifier routes indicator output to Hyprland or the freedesktop notification daemon.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu        sync.Mutex
	desktopID uint32
	soundMu   sync.Mutex
	sounds    sync.WaitGroup
}

var _ Controller = (*Notifier)(nil)

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFor(cfg),
	}
}

// ShowRecording plays the start cue and shows the listening banner.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.playCue(ctx, cueStart)
	n.notify(ctx, 1, stickyTimeoutMS, colorRecording, n.messages.recording)
}

// ShowProcessing plays the stop cue and shows the processing banner.
func (n *Notifier) ShowProcessing(ctx context.Context) {
	n.playCue(ctx, cueStop)
	n.notify(ctx, 1, stickyTimeoutMS, colorProcessing, n.messages.processing)
}

// ShowNotice briefly shows text, e.g. when no hook matched.
func (n *Notifier) ShowNotice(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		n.Hide(ctx)
		return
	}
	n.notify(ctx, 2, n.errorTimeout(), colorNotice, text)
}

// ShowError plays the error cue and shows text, or the default error message when empty.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(ctx, cueError)
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	n.notify(ctx, 3, n.errorTimeout(), colorError, text)
}

func (n *Notifier) CueComplete(ctx context.Context) { n.playCue(ctx, cueComplete) }

func (n *Notifier) CueCancel(ctx context.Context) { n.playCue(ctx, cueCancel) }

// Hide dismisses the active indicator.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.sounds.Wait()
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return defaultErrorMS
	}
	return n.cfg.ErrorTimeoutMS
}

func (n *Notifier) desktopBackend() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

func (n *Notifier) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		if n.desktopBackend() {
			return n.notifyDesktop(ctx, timeoutMS, text)
		}
		return hypr.Notify(ctx, icon, timeoutMS, color, text)
	})
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if !n.desktopBackend() {
		return hypr.DismissNotify(ctx)
	}

	n.mu.Lock()
	id := n.desktopID
	n.desktopID = 0
	n.mu.Unlock()
	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// notifyDesktop replaces the previous notification so only one banner is visible.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "voxhook"
	}
	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue plays asynchronously; cues are serialized so they never overlap.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	cueCtx := context.WithoutCancel(ctx)
	n.sounds.Add(1)
	go func() {
		defer n.sounds.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(cueCtx, kind, n.cfg); err != nil {
			n.logger.Debug("indicator audio cue failed", "cue", kind.String(), "error", err.Error())
		}
	}()
}
