package root

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/logging"
	"github.com/docker/angi/pkg/paths"
)

type rootFlags struct {
	enableOtel  bool
	debugMode   bool
	logFormat   string
	logFilePath string
	logMaxSize  string
	configPath  string
	logFile     io.Closer
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "angi",
		Short: "angi - LLM-addressable UI components",
		Long:  "angi relays prompts to a language model and turns its tool calls into actions on registered UI components",
		Example: `  angi init
  angi serve --listen 127.0.0.1:8080
  angi prompt --components components.yaml "fill the form with test data"`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.setupLogging(cmd.ErrOrStderr()); err != nil {
				return err
			}

			if flags.enableOtel {
				if err := initOTelSDK(cmd.Context()); err != nil {
					slog.Warn("Failed to initialize OpenTelemetry SDK", "error", err)
				} else {
					slog.Debug("OpenTelemetry SDK initialized successfully")
				}
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logFile != nil {
				if err := flags.logFile.Close(); err != nil {
					slog.Error("Failed to close log file", "error", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.enableOtel, "otel", "o", false, "Enable OpenTelemetry tracing")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "Write logs to a rotating file instead of stderr")
	cmd.PersistentFlags().StringVar(&flags.logMaxSize, "log-max-size", units.BytesSize(logging.DefaultMaxSize), "Size at which the log file is rotated")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the configuration file (default: ~/.config/angi/config.yaml)")

	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd(&flags))
	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newPromptCmd(&flags))

	return cmd
}

func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	setContextRecursive(ctx, rootCmd)

	if err := rootCmd.Execute(); err != nil {
		return processErr(ctx, err, stderr, rootCmd)
	}
	return nil
}

func setContextRecursive(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, child := range cmd.Commands() {
		setContextRecursive(ctx, child)
	}
}

func processErr(ctx context.Context, err error, stderr io.Writer, rootCmd *cobra.Command) error {
	if ctx.Err() != nil {
		return ctx.Err()
	} else if envErr, ok := errors.AsType[*environment.RequiredEnvError](err); ok {
		fmt.Fprintln(stderr, "The following environment variables must be set:")
		for _, v := range envErr.Missing {
			fmt.Fprintf(stderr, " - %s\n", v)
		}
		fmt.Fprintln(stderr, "\nEither:\n - Set those environment variables before running angi\n - List a .env file containing them under env_files in the configuration")
	} else if cfgErr, ok := errors.AsType[*config.ValidationError](err); ok {
		fmt.Fprintln(stderr, "The configuration is invalid:")
		for _, p := range cfgErr.Problems {
			fmt.Fprintf(stderr, " - %s\n", p)
		}
	} else if _, ok := errors.AsType[RuntimeError](err); ok {
		// Already printed by the command.
	} else {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr)
		if strings.HasPrefix(err.Error(), "unknown command ") || strings.HasPrefix(err.Error(), "accepts ") {
			_ = rootCmd.Usage()
		}
	}

	return err
}

// setupLogging installs the default slog logger. Records go to stderr, or
// to a rotating file when --log-file is set. A log file that cannot be
// opened falls back to stderr.
func (f *rootFlags) setupLogging(stderr io.Writer) error {
	format, err := logging.ParseFormat(f.logFormat)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if f.debugMode {
		level = slog.LevelDebug
	}

	out := stderr
	if path := strings.TrimSpace(f.logFilePath); path != "" {
		maxSize, err := units.RAMInBytes(f.logMaxSize)
		if err != nil {
			return fmt.Errorf("invalid --log-max-size: %w", err)
		}
		logFile, err := logging.OpenRotatingFile(path, logging.WithMaxSize(maxSize))
		if err != nil {
			slog.SetDefault(slog.New(logging.NewHandler(stderr, format, level)))
			slog.Warn("Failed to open log file, logging to stderr", "path", path, "error", err)
			return nil
		}
		f.logFile = logFile
		out = logFile
	}

	slog.SetDefault(slog.New(logging.NewHandler(out, format, level)))
	return nil
}

func (f *rootFlags) configFile() string {
	return cmp.Or(strings.TrimSpace(f.configPath), paths.GetConfigFile())
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	return config.Load(f.configFile())
}
