package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/audio"
)

func newRecordCmd(app *appState) *cobra.Command {
	var (
		seconds int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio into a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seconds") {
				seconds = app.conf().Record.DefaultSeconds
			}
			if err := validateSeconds(seconds); err != nil {
				return err
			}

			outPath, err := app.recordingOutputPath(output)
			if err != nil {
				return err
			}

			recorder, err := app.recorder()
			if err != nil {
				return err
			}

			app.log().Info("recording started", zap.String("backend", recorder.Backend.Name()), zap.String("output", outPath))
			stop := startDurationProgress(app.progressEnabled(), "Recording", time.Duration(seconds)*time.Second)
			clip, err := recorder.Capture(cmd.Context(), seconds)
			stop()
			if err != nil {
				return err
			}

			if err := writeClip(outPath, clip); err != nil {
				return err
			}

			app.log().Info("recording finished", zap.String("path", outPath), zap.Duration("duration", clip.Duration()))
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}

	cmd.Flags().IntVarP(&seconds, "seconds", "s", 5, "Recording length in seconds")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output WAV file path (default: voxscribe-<timestamp>.wav)")
	return cmd
}

func (a *appState) recordingOutputPath(output string) (string, error) {
	if output != "" {
		return filepath.Clean(output), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	name := fmt.Sprintf("voxscribe-%s.wav", a.now().Format("20060102-150405"))
	return filepath.Join(cwd, name), nil
}

func writeClip(path string, clip audio.Clip) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := audio.WriteWAV(f, clip); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}
