package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/platform"
	"github.com/fmueller/voxscribe/internal/whisper"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download, verify and load the speech model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := platform.ResolveModelDir(app.conf().ModelDir)
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.conf().Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			app.log().Info("preparing model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
			if resolved.NeedsDownload {
				fmt.Fprintf(cmd.ErrOrStderr(), "Downloading model %s (%s)...\n", resolved.Name, resolved.Size)
			}
			stop := startSpinner(app.progressEnabled() && !resolved.NeedsDownload, "Loading model")
			handle, err := app.lifecycle().Prefetch(cmd.Context())
			stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Model %s ready at %s\n", handle.Name, handle.Path)
			return nil
		},
	}
}
