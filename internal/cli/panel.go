package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fmueller/voxscribe/internal/panel"
	"github.com/fmueller/voxscribe/internal/picker"
	"github.com/fmueller/voxscribe/internal/session"
)

const (
	clearScreen = "\033[H\033[2J"
	panelHelp   = "r record | d [n] duration | i import file | c clear | y copy last | q quit"
)

func newPanelCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:         "panel",
		Short:       "Open the transcription panel",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogToFile: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPanel(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// panelView draws the panel model on a terminal and turns typed lines into
// panel actions.
type panelView struct {
	model  *panel.Model
	out    io.Writer
	clear  bool
	redraw chan struct{}

	mu     sync.Mutex
	notice string
	prompt string
	answer chan string
}

func (a *appState) newPanelView(out io.Writer) *panelView {
	view := &panelView{
		out:    &lockedWriter{w: out},
		clear:  isTerminal(out),
		redraw: make(chan struct{}, 1),
	}

	var model *panel.Model
	orch := a.orchestrator(func(e session.Event) { model.Observe(e) })

	cfg := a.conf()
	model = panel.New(panel.Config{
		Runner: orch,
		Pick: func(ctx context.Context) (string, error) {
			return picker.New(cfg.Picker, view.ask(ctx, "Enter path to audio file: "), nil, a.log()).Pick(ctx)
		},
		Copy:           a.copyFn,
		Durations:      cfg.Record.Durations,
		DefaultSeconds: cfg.Record.DefaultSeconds,
		Logger:         a.log(),
	})
	view.model = model
	return view
}

func (a *appState) runPanel(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := a.newPanelView(out)
	lines := newLineReader(in)
	a.log().Info("panel started")

	var drawing sync.WaitGroup
	drawing.Add(1)
	go func() {
		defer drawing.Done()
		view.drawLoop(ctx)
	}()

	for {
		line, err := lines.ReadLine(ctx)
		if err != nil {
			break
		}
		if view.deliver(line) {
			continue
		}
		if quit := view.handle(ctx, line); quit {
			break
		}
	}

	cancel()
	view.model.Wait()
	drawing.Wait()
	a.log().Info("panel closed")
	return nil
}

func (v *panelView) drawLoop(ctx context.Context) {
	v.draw()
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.model.Changes():
		case <-v.redraw:
		}
		v.draw()
	}
}

// handle runs one typed command and reports whether the panel should close.
func (v *panelView) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		v.setNotice("")
		return false
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "r", "record":
		err = v.model.Record(ctx)
	case "d", "duration":
		if len(fields) > 1 {
			seconds, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				err = fmt.Errorf("duration must be a number of seconds, got %q", fields[1])
				break
			}
			err = v.model.SelectDuration(seconds)
		} else {
			v.model.NextDuration()
		}
	case "i", "import":
		err = v.model.Import(ctx)
	case "c", "clear":
		v.model.Clear()
	case "y", "copy":
		err = v.model.CopyLast(ctx)
		if errors.Is(err, panel.ErrNothingCopy) {
			err = errors.New("nothing to copy yet")
		}
	case "q", "quit", "exit":
		return true
	default:
		err = fmt.Errorf("unknown command %q", fields[0])
	}

	if err != nil {
		v.setNotice(err.Error())
	} else {
		v.setNotice("")
	}
	return false
}

// ask returns a line reader for the file picker's typed fallback. The next
// line typed into the panel is handed to the picker instead of being run as
// a command.
func (v *panelView) ask(ctx context.Context, prompt string) func() (string, error) {
	return func() (string, error) {
		answer := make(chan string, 1)
		v.mu.Lock()
		v.prompt = prompt
		v.answer = answer
		v.mu.Unlock()
		v.requestRedraw()

		defer func() {
			v.mu.Lock()
			if v.answer == answer {
				v.prompt = ""
				v.answer = nil
			}
			v.mu.Unlock()
			v.requestRedraw()
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line := <-answer:
			return line, nil
		}
	}
}

// deliver hands line to a waiting prompt.
func (v *panelView) deliver(line string) bool {
	v.mu.Lock()
	answer := v.answer
	v.answer = nil
	v.prompt = ""
	v.mu.Unlock()

	if answer == nil {
		return false
	}
	answer <- line
	return true
}

func (v *panelView) setNotice(notice string) {
	v.mu.Lock()
	v.notice = notice
	v.mu.Unlock()
	v.requestRedraw()
}

func (v *panelView) requestRedraw() {
	select {
	case v.redraw <- struct{}{}:
	default:
	}
}

func (v *panelView) draw() {
	snap := v.model.Snapshot()
	v.mu.Lock()
	notice, prompt := v.notice, v.prompt
	v.mu.Unlock()

	var b strings.Builder
	if v.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString(renderPanel(snap))
	if notice != "" {
		b.WriteString("! " + notice + "\n")
	}
	if prompt != "" {
		b.WriteString(prompt)
	} else {
		b.WriteString("> ")
	}
	_, _ = io.WriteString(v.out, b.String())
}

func renderPanel(snap panel.Snapshot) string {
	var b strings.Builder
	b.WriteString("voxscribe panel\n")
	fmt.Fprintf(&b, "Status: %s\n", snap.Status)

	durations := make([]string, 0, len(snap.Durations))
	for _, d := range snap.Durations {
		label := strconv.Itoa(d)
		if d == snap.Duration {
			label = "[" + label + "]"
		}
		durations = append(durations, label)
	}
	fmt.Fprintf(&b, "Duration (s): %s", strings.Join(durations, " "))
	if snap.Busy {
		b.WriteString("  (busy)")
	}
	b.WriteString("\n")

	b.WriteString(resultRule + "\n")
	if output := snap.Output(); output != "" {
		b.WriteString(output)
	} else {
		b.WriteString("(no transcripts yet)\n\n")
	}
	b.WriteString(resultRule + "\n")
	b.WriteString(panelHelp + "\n")
	return b.String()
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
