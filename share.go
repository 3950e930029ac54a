package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"jarvis/controller"
)

// exit status a share helper uses to signal the user backed out
const shareCancelledExit = 130

// CommandSharer pipes the transcript to an external program, such as a
// mail composer or a paste-bin client.
type CommandSharer struct {
	argv []string
}

func NewCommandSharer(cmdline string) *CommandSharer {
	return &CommandSharer{argv: strings.Fields(cmdline)}
}

func (s *CommandSharer) Available() bool {
	if len(s.argv) == 0 {
		return false
	}
	_, err := exec.LookPath(s.argv[0])
	return err == nil
}

func (s *CommandSharer) Share(ctx context.Context, title, text string) error {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Env = append(os.Environ(), "JARVIS_SHARE_TITLE="+title)
	cmd.Stdin = strings.NewReader(text)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return controller.ErrShareCancelled
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == shareCancelledExit {
		return controller.ErrShareCancelled
	}
	return fmt.Errorf("%s: %w: %s", s.argv[0], err, strings.TrimSpace(string(out)))
}
