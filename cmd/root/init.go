package root

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/docker/angi/pkg/cli"
	"github.com/docker/angi/pkg/config"
)

type initFlags struct {
	force    bool
	provider string
	model    string
	listen   string
}

func newInitCmd(root *rootFlags) *cobra.Command {
	var flags initFlags

	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Write a default configuration file",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd, root.configFile())
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Overwrite an existing configuration")
	cmd.Flags().StringVar(&flags.provider, "provider", config.DefaultProvider, "Model provider: anthropic or openai")
	cmd.Flags().StringVar(&flags.model, "model", "", "Model name (default depends on the provider)")
	cmd.Flags().StringVar(&flags.listen, "listen", config.DefaultListen, "Address the server listens on")

	return cmd
}

func (f *initFlags) run(cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err == nil && !f.force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg := &config.Config{
		Listen: f.listen,
		Model: config.ModelConfig{
			Provider: f.provider,
			Model:    f.model,
		},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	cli.NewPrinter(cmd.OutOrStdout()).Printf("Configuration written to %s\n", path)
	return nil
}
