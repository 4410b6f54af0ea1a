package root

import (
	"github.com/spf13/cobra"

	"github.com/docker/angi/pkg/cli"
	"github.com/docker/angi/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cli.NewPrinter(cmd.OutOrStdout())
			out.Printf("angi version %s\n", version.Version)
			out.Printf("Commit: %s\n", version.Commit)
		},
	}
}
