package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxscribe/internal/platform"
	"github.com/fmueller/voxscribe/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := platform.CurrentRuntime()
			fmt.Fprintf(cmd.OutOrStdout(), "voxscribe v%s (%s/%s)\n", version.Resolve(), rt.OS, rt.Arch)
			return nil
		},
	}
}
