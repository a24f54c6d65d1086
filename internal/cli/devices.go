package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxscribe/internal/clipboard"
	"github.com/fmueller/voxscribe/internal/picker"
	"github.com/fmueller/voxscribe/internal/record"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := app.backends
			if backends == nil {
				backends = record.DefaultBackends
			}
			available := backends(app.goos)
			if len(available) == 0 {
				return fmt.Errorf("unsupported OS: %s", app.goos)
			}

			out := cmd.OutOrStdout()
			for _, backend := range available {
				fmt.Fprintf(out, "== %s ==\n", backend.Name())
				if !backend.Available() {
					fmt.Fprintln(out, "not available")
					fmt.Fprintln(out)
					continue
				}

				list, err := backend.ListDevices(cmd.Context())
				if err != nil {
					fmt.Fprintf(out, "failed to list devices: %v\n\n", err)
					continue
				}

				if list == "" {
					fmt.Fprintln(out, "no output")
					fmt.Fprintln(out)
					continue
				}

				fmt.Fprintln(out, list)
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "clipboard: %s\n", orNone(clipboard.Tool()))
			dialog := picker.New(app.conf().Picker, nil, nil, app.log()).Dialog()
			fmt.Fprintf(out, "file dialog: %s\n", orNone(dialog))
			return nil
		},
	}
}

func orNone(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
