// Package output delivers text to the focused window and runs external commands for actions.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned when an action has no argv to run.
var ErrEmptyCommand = errors.New("command argv cannot be empty")

// RunCommand executes argv, writing input to stdin when non-empty.
// The returned error carries the command's trimmed stderr.
func RunCommand(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := io.WriteString(stdin, input); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("%s: %w (%s)", argv[0], err, detail)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
