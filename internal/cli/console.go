package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/voxscribe/internal/session"
)

// consoleProgress prints request progress for the line-based frontends and
// drives the spinners.
type consoleProgress struct {
	out      io.Writer
	progress bool
	loaded   func() bool

	mu   sync.Mutex
	stop stopFunc
}

func (a *appState) newConsoleProgress(out io.Writer) *consoleProgress {
	return &consoleProgress{
		out:      out,
		progress: a.progressEnabled(),
		loaded:   a.lifecycle().Loaded,
	}
}

func (c *consoleProgress) Observe(e session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if e.State.Terminal() {
		return
	}

	switch e.State {
	case session.StateEnsuringModel:
		if c.loaded != nil && c.loaded() {
			return
		}
		fmt.Fprintln(c.out, "Loading model...")
		c.stop = startSpinner(c.progress, "Loading model")
	case session.StateAcquiringAudio:
		if e.Source.Kind != session.SourceMicrophone {
			return
		}
		fmt.Fprintf(c.out, "Recording for %d seconds... speak now.\n", e.Source.Seconds)
		c.stop = startDurationProgress(c.progress, "Recording", time.Duration(e.Source.Seconds)*time.Second)
	case session.StateTranscribing:
		fmt.Fprintln(c.out, "Converting speech to text...")
		c.stop = startSpinner(c.progress, "Transcribing")
	}
}

// Stop ends a spinner left running by the last transition.
func (c *consoleProgress) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

// lineReader reads stdin on its own goroutine so prompts can be abandoned
// when the context is cancelled.
type lineReader struct {
	lines chan string
	done  chan struct{}
	err   error
}

func newLineReader(in io.Reader) *lineReader {
	r := &lineReader{lines: make(chan string), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			r.lines <- scanner.Text()
		}
		r.err = scanner.Err()
	}()
	return r
}

// ReadLine returns the next line without its newline. io.EOF reports the end
// of input.
func (r *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-r.lines:
		return strings.TrimRight(line, "\r"), nil
	case <-r.done:
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
}

func (r *lineReader) readFunc(ctx context.Context) func() (string, error) {
	return func() (string, error) {
		return r.ReadLine(ctx)
	}
}

func isQuit(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}
