package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/picker"
	"github.com/fmueller/voxscribe/internal/session"
	"github.com/fmueller/voxscribe/internal/transcribe"
)

const resultRule = "--------------------------------------------------"

func newMenuCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runMenu(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runMenu loops over the numbered menu until the user quits, stdin ends, or
// the model cannot be loaded.
func (a *appState) runMenu(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lines := newLineReader(in)
	progress := a.newConsoleProgress(out)
	defer progress.Stop()
	orch := a.orchestrator(progress.Observe)

	fmt.Fprintln(out, "voxscribe: voice to text")
	fmt.Fprintln(out, strings.Repeat("=", 40))

	for {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "What would you like to do?")
		fmt.Fprintln(out, "1. Pre-download model (run this first!)")
		fmt.Fprintln(out, "2. Record from microphone and transcribe")
		fmt.Fprintln(out, "3. Transcribe an audio file")
		fmt.Fprintln(out, "4. Quit")
		fmt.Fprint(out, "Enter your choice (1-4): ")

		choice, err := lines.ReadLine(ctx)
		if err != nil {
			if isQuit(err) {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			return err
		}

		var outcome session.Outcome
		switch strings.TrimSpace(choice) {
		case "1":
			a.menuPrefetch(ctx, out, progress)
		case "2":
			seconds, err := a.promptSeconds(ctx, out, lines)
			if err != nil {
				if isQuit(err) {
					fmt.Fprintln(out, "Goodbye!")
					return nil
				}
				return err
			}
			outcome = orch.RecordAndTranscribe(ctx, seconds)
		case "3":
			pick := func(ctx context.Context) (string, error) {
				return picker.New("", lines.readFunc(ctx), out, a.log()).Prompt()
			}
			outcome = orch.TranscribeFile(ctx, pick)
		case "4":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice. Please enter 1, 2, 3, or 4.")
			continue
		}
		progress.Stop()

		if outcome.State != "" {
			if err := a.reportOutcome(out, outcome); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		fmt.Fprint(out, "\nPress Enter to continue...")
		if _, err := lines.ReadLine(ctx); err != nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
	}
}

func (a *appState) menuPrefetch(ctx context.Context, out io.Writer, progress *consoleProgress) {
	fmt.Fprintln(out, "Pre-downloading whisper model...")
	fmt.Fprintln(out, "The model is stored locally so later loads are fast. Please wait...")

	stop := startSpinner(progress.progress, "Preparing model")
	handle, err := a.lifecycle().Prefetch(ctx)
	stop()
	if err != nil {
		a.log().Error("model prefetch failed", zap.Error(err))
		fmt.Fprintf(out, "Error preparing model: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Model %s is ready for use!\n", handle.Name)
}

// promptSeconds asks for a recording length. Blank or invalid input uses the
// configured default.
func (a *appState) promptSeconds(ctx context.Context, out io.Writer, lines *lineReader) (int, error) {
	fallback := a.conf().Record.DefaultSeconds
	fmt.Fprintf(out, "Enter recording duration in seconds (default %d): ", fallback)

	line, err := lines.ReadLine(ctx)
	if err != nil {
		return 0, err
	}
	return parseSeconds(line, fallback), nil
}

func parseSeconds(input string, fallback int) int {
	seconds, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || seconds <= 0 {
		return fallback
	}
	return seconds
}

// reportOutcome prints a finished request. A model failure ends the menu.
func (a *appState) reportOutcome(out io.Writer, outcome session.Outcome) error {
	switch {
	case outcome.Err != nil && outcome.Err.Kind == session.KindModelLoadFailure:
		return fmt.Errorf("%w\ntry running option 1 (pre-download model) first", outcome.Err)
	case outcome.Err != nil && outcome.Err.Kind == session.KindCanceled:
		fmt.Fprintln(out, "Canceled.")
	case outcome.Err != nil:
		fmt.Fprintf(out, "%s: %s\n", outcome.Err.Kind.Title(), outcome.Err.Detail)
	case outcome.State == session.StateNoFileChosen:
		fmt.Fprintln(out, session.KindNoFileChosen.Title())
	case transcribe.IsBlank(outcome.Result.Text):
		fmt.Fprintln(out, transcribe.NoSpeechHint())
	default:
		language := outcome.Result.Language
		if language == "" {
			language = "unknown"
		}
		fmt.Fprintln(out)
		if outcome.Source.Kind == session.SourceFile {
			fmt.Fprintf(out, "Transcription of %s (Language: %s):\n", outcome.Source.Name, language)
		} else {
			fmt.Fprintf(out, "You said (Language: %s):\n", language)
		}
		fmt.Fprintln(out, resultRule)
		fmt.Fprintln(out, outcome.Result.Text)
		fmt.Fprintln(out, resultRule)
	}
	return nil
}
