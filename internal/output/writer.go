package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/voxhook/internal/config"
)

const (
	clipboardTimeout = 2 * time.Second
	pasteTimeout     = 1200 * time.Millisecond
)

// Writer types or pastes text into the focused window.
type Writer struct {
	typeCmd   []string
	clipboard []string
	pasteCmd  []string
	paste     config.PasteConfig
	logger    *slog.Logger
}

// NewWriter builds a writer from the configured commands.
func NewWriter(cfg config.Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		typeCmd:   cfg.TypeCmd.Argv,
		clipboard: cfg.Clipboard.Argv,
		pasteCmd:  cfg.PasteCmd.Argv,
		paste:     cfg.Paste,
		logger:    logger,
	}
}

// Type sends text to type_cmd on stdin.
func (w *Writer) Type(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := RunCommand(ctx, w.typeCmd, text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

// Paste sets the clipboard and, when enabled, sends the paste shortcut.
// A paste failure is logged; the clipboard stays set and Paste still succeeds.
func (w *Writer) Paste(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	clipCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := RunCommand(clipCtx, w.clipboard, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	if !w.paste.Enable {
		return nil
	}

	pasteCtx, cancelPaste := context.WithTimeout(ctx, pasteTimeout)
	defer cancelPaste()

	var err error
	if len(w.pasteCmd) > 0 {
		err = RunCommand(pasteCtx, w.pasteCmd, "")
	} else {
		err = sendPasteShortcut(pasteCtx, w.paste.Shortcut)
	}
	if err != nil {
		w.logger.Error("paste dispatch failed; clipboard remains set", "error", err.Error())
	}
	return nil
}
