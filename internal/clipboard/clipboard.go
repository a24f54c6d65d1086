// Package clipboard copies transcripts to the system clipboard through the
// platform's clipboard command.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("no clipboard command available")

type commandSpec struct {
	name string
	args []string
	// detach leaves the command running after stdin closes. xclip and xsel
	// keep serving the selection until another client takes ownership.
	detach bool
}

// CopyText writes value to the clipboard of the current platform.
func CopyText(ctx context.Context, value string) error {
	spec, err := detectCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}
	return run(ctx, spec, value)
}

// Tool names the clipboard command CopyText would use, or "" when none is
// installed.
func Tool() string {
	spec, err := detectCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return ""
	}
	return spec.name
}

func run(ctx context.Context, spec commandSpec, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if spec.detach {
		return copyWithDetachedCommand(spec, value)
	}

	copyCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, spec.name, spec.args...)
	cmd.Stdin = strings.NewReader(value)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if runErr := cmd.Run(); runErr != nil {
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return fmt.Errorf("copy to clipboard with %s: %w", spec.name, runErr)
	}

	return nil
}

func detectCommand(goos string, lookPath func(string) (string, error)) (commandSpec, error) {
	candidates := []commandSpec{
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard", "-in", "-silent"}, detach: true},
		{name: "xsel", args: []string{"--clipboard", "--input"}, detach: true},
	}
	switch goos {
	case "darwin":
		candidates = []commandSpec{{name: "pbcopy"}}
	case "windows":
		candidates = []commandSpec{{name: "clip"}}
	}

	for _, spec := range candidates {
		if _, err := lookPath(spec.name); err == nil {
			return spec, nil
		}
	}
	return commandSpec{}, ErrUnavailable
}

func copyWithDetachedCommand(spec commandSpec, value string) error {
	cmd := exec.Command(spec.name, spec.args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start clipboard command: %w", err)
	}

	if _, err := io.WriteString(stdin, value); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return fmt.Errorf("write clipboard data: %w", err)
	}

	if err := stdin.Close(); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("close clipboard stdin: %w", err)
	}

	_ = cmd.Process.Release()
	return nil
}
