package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := filepath.Clean(args[0])
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file not found: %w", err)
			}

			progress := app.newConsoleProgress(cmd.ErrOrStderr())
			defer progress.Stop()

			pick := func(context.Context) (string, error) { return audioPath, nil }
			outcome := app.orchestrator(progress.Observe).TranscribeFile(cmd.Context(), pick)
			progress.Stop()
			if err := outcomeError(outcome); err != nil {
				return err
			}

			app.log().Info("transcription finished",
				zap.String("audio", audioPath),
				zap.String("language", outcome.Result.Language),
				zap.Duration("elapsed", outcome.Elapsed))
			return app.printTranscript(cmd.Context(), cmd.OutOrStdout(), outcome.Result.Text, copyToClipboard)
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}
