package cli

import (
	"github.com/spf13/cobra"
)

func newDictateCmd(app *appState) *cobra.Command {
	var (
		seconds         int
		copyToClipboard bool
	)

	cmd := &cobra.Command{
		Use:   "dictate",
		Short: "Record from the microphone and print the transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seconds") {
				seconds = app.conf().Record.DefaultSeconds
			}
			if err := validateSeconds(seconds); err != nil {
				return err
			}

			progress := app.newConsoleProgress(cmd.ErrOrStderr())
			defer progress.Stop()

			outcome := app.orchestrator(progress.Observe).RecordAndTranscribe(cmd.Context(), seconds)
			progress.Stop()
			if err := outcomeError(outcome); err != nil {
				return err
			}
			return app.printTranscript(cmd.Context(), cmd.OutOrStdout(), outcome.Result.Text, copyToClipboard)
		},
	}

	cmd.Flags().IntVarP(&seconds, "seconds", "s", 5, "Recording length in seconds")
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}
