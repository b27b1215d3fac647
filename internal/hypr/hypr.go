// Package hypr wraps the hyprctl commands voxhook uses for paste targeting,
// notifications, and compositor dispatch actions.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const defaultNotifyColor = "rgb(89b4fa)"

// Dispatch runs `hyprctl dispatch <dispatcher> [arg]`, e.g. workspace 3 or exec kitty.
func Dispatch(ctx context.Context, dispatcher string, arg string) error {
	dispatcher = strings.TrimSpace(dispatcher)
	if dispatcher == "" {
		return errors.New("hyprctl dispatcher must not be empty")
	}
	args := []string{"--quiet", "dispatch", dispatcher}
	if arg = strings.TrimSpace(arg); arg != "" {
		args = append(args, arg)
	}
	return runHyprctl(ctx, args...)
}

// SendShortcut sends a literal hyprctl sendshortcut payload.
func SendShortcut(ctx context.Context, shortcut string) error {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return errors.New("sendshortcut requires a non-empty payload")
	}
	return runHyprctl(ctx, "--quiet", "dispatch", "sendshortcut", shortcut)
}

// Notify shows a compositor notification. An empty color falls back to the default blue.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = defaultNotifyColor
	}
	return runHyprctl(ctx,
		"--quiet", "dispatch", "notify",
		strconv.Itoa(icon), strconv.Itoa(timeoutMS), color, text,
	)
}

// DismissNotify clears active compositor notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			return nil, fmt.Errorf("hyprctl %s: %w", strings.Join(args, " "), err)
		}
		return nil, fmt.Errorf("hyprctl %s: %w (%s)", strings.Join(args, " "), err, detail)
	}
	return out, nil
}
