// Package picker asks the user for an audio file, through a native file
// dialog when one is installed and a typed prompt otherwise.
package picker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/audio"
)

var ErrUnavailable = errors.New("no file dialog available")

const DefaultTitle = "Select Audio File"

type dialogSpec struct {
	name string
	args []string
}

type Picker struct {
	Title string
	// Command overrides dialog detection, e.g. "yad --file". It is split
	// with shell quoting rules and must print the chosen path on stdout.
	Command string
	// ReadLine reads one line of user input for the prompt fallback.
	ReadLine func() (string, error)
	Out      io.Writer
	Logger   *zap.Logger

	goos     string
	lookPath func(string) (string, error)
}

func New(command string, readLine func() (string, error), out io.Writer, logger *zap.Logger) *Picker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Picker{
		Title:    DefaultTitle,
		Command:  command,
		ReadLine: readLine,
		Out:      out,
		Logger:   logger,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
	}
}

// Pick returns the chosen path, or "" when the user cancelled.
func (p *Picker) Pick(ctx context.Context) (string, error) {
	spec, err := p.dialog()
	if err == nil {
		path, canceled, runErr := p.runDialog(ctx, spec)
		switch {
		case runErr == nil && canceled:
			return "", nil
		case runErr == nil:
			return path, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		}
		p.Logger.Warn("file dialog failed; asking for a path instead", zap.String("dialog", spec.name), zap.Error(runErr))
	} else {
		p.Logger.Debug("no file dialog found; asking for a path", zap.Error(err))
	}

	return p.Prompt()
}

// Prompt asks for a path on Out and reads it with ReadLine.
func (p *Picker) Prompt() (string, error) {
	if p.ReadLine == nil {
		return "", ErrUnavailable
	}
	if p.Out != nil {
		fmt.Fprint(p.Out, "Enter path to audio file: ")
	}
	line, err := p.ReadLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read path: %w", err)
	}
	return ParsePath(line, p.goos), nil
}

// Dialog names the dialog command Pick would use, or "" for the prompt.
func (p *Picker) Dialog() string {
	spec, err := p.dialog()
	if err != nil {
		return ""
	}
	return spec.name
}

func (p *Picker) dialog() (dialogSpec, error) {
	if strings.TrimSpace(p.Command) != "" {
		args, err := shellwords.Parse(p.Command)
		if err != nil {
			return dialogSpec{}, fmt.Errorf("parse picker command %q: %w", p.Command, err)
		}
		if len(args) == 0 {
			return dialogSpec{}, ErrUnavailable
		}
		return dialogSpec{name: args[0], args: args[1:]}, nil
	}

	title := p.Title
	if title == "" {
		title = DefaultTitle
	}
	patterns := strings.Join(audio.Patterns(), " ")

	var candidates []dialogSpec
	switch p.goos {
	case "darwin":
		candidates = []dialogSpec{{name: "osascript", args: []string{"-e", appleScript(title)}}}
	case "windows":
		return dialogSpec{}, ErrUnavailable
	default:
		home, _ := os.UserHomeDir()
		candidates = []dialogSpec{
			{name: "zenity", args: []string{
				"--file-selection",
				"--title=" + title,
				"--file-filter=Audio files | " + patterns,
				"--file-filter=All files | *",
			}},
			{name: "kdialog", args: []string{"--title", title, "--getopenfilename", home, patterns + "|Audio files"}},
		}
	}

	for _, spec := range candidates {
		if _, err := p.lookPath(spec.name); err == nil {
			return spec, nil
		}
	}
	return dialogSpec{}, ErrUnavailable
}

// runDialog runs the dialog. Exit status 1 is how zenity, kdialog and
// osascript report a dismissed dialog.
func (p *Picker) runDialog(ctx context.Context, spec dialogSpec) (string, bool, error) {
	cmd := exec.CommandContext(ctx, spec.name, spec.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.Logger.Debug("opening file dialog", zap.String("dialog", spec.name))
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", true, nil
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return "", false, fmt.Errorf("%s: %w (%s)", spec.name, err, detail)
		}
		return "", false, fmt.Errorf("%s: %w", spec.name, err)
	}

	path := strings.TrimSpace(stdout.String())
	return path, path == "", nil
}

func appleScript(title string) string {
	types := make([]string, 0, len(audio.SupportedExtensions))
	for _, ext := range audio.SupportedExtensions {
		types = append(types, fmt.Sprintf("%q", strings.TrimPrefix(ext, ".")))
	}
	return fmt.Sprintf("POSIX path of (choose file with prompt %q of type {%s})", title, strings.Join(types, ", "))
}

// ParsePath cleans up a typed path: surrounding whitespace goes, and a path
// pasted with shell quoting or escaped spaces is unquoted. Windows paths only
// lose surrounding quotes since backslash is their separator.
func ParsePath(input, goos string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if goos == "windows" {
		return strings.Trim(trimmed, `"'`)
	}

	args, err := shellwords.Parse(trimmed)
	if err != nil || len(args) != 1 {
		return trimmed
	}
	return args[0]
}
