package root

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/docker/angi/pkg/agent"
	"github.com/docker/angi/pkg/cli"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/server"
)

type serveFlags struct {
	listenAddr     string
	endpointPath   string
	fakeScript     string
	watch          bool
	exitOnStdinEOF bool
}

func newServeCmd(root *rootFlags) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the angi HTTP endpoint",
		Long: `Start the HTTP endpoint that relays prompts to the configured model.

POST <endpoint> streams chunks as server-sent events, POST <endpoint>?stream=false
returns a single JSON response and GET /api/ping reports the active model.`,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd, root)
		},
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", "", "Address to listen on: host:port, unix:///path, npipe://name or fd://N (default from configuration)")
	cmd.Flags().StringVar(&flags.endpointPath, "endpoint-path", "", "Path of the prompt endpoint (default from configuration)")
	cmd.Flags().StringVar(&flags.fakeScript, "fake", "", "Replay the scripted model events in this YAML file instead of calling a provider")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Reload the model configuration when the configuration file changes")
	cmd.Flags().BoolVar(&flags.exitOnStdinEOF, "exit-on-stdin-eof", false, "Exit when stdin is closed (for integration with parent processes)")
	_ = cmd.Flags().MarkHidden("exit-on-stdin-eof")

	return cmd
}

// apply overrides cfg with the command line flags.
func (f *serveFlags) apply(cfg *config.Config) error {
	if f.listenAddr != "" {
		cfg.Listen = f.listenAddr
	}
	if f.endpointPath != "" {
		cfg.EndpointPath = f.endpointPath
	}
	if f.fakeScript != "" {
		cfg.Model = config.ModelConfig{Provider: "fake", Script: f.fakeScript}
		cfg.Model.ApplyDefaults()
	}
	return cfg.Validate()
}

func (f *serveFlags) run(cmd *cobra.Command, root *rootFlags) error {
	ctx := cmd.Context()
	out := cli.NewPrinter(cmd.OutOrStdout())

	if f.exitOnStdinEOF {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go monitorStdin(ctx, cancel, cmd.InOrStdin())
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if err := f.apply(cfg); err != nil {
		return err
	}

	a, err := newAgent(ctx, cfg, root.enableOtel)
	if err != nil {
		return err
	}

	ln, err := server.Listen(ctx, cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	srv := server.New(a, server.WithEndpointPath(cfg.EndpointPath))

	out.Printf("Listening on %s (POST %s, model %s)\n", ln.Addr().String(), cfg.EndpointPath, a.Model())
	slog.Debug("Starting server", "addr", ln.Addr().String(), "endpoint", cfg.EndpointPath, "model", a.Model())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx, ln)
	})

	if f.watch {
		path := root.configFile()
		err := config.Watch(ctx, path, func(updated *config.Config) {
			if err := f.apply(updated); err != nil {
				slog.Warn("Ignoring configuration change", "path", path, "error", err)
				return
			}
			if updated.Listen != cfg.Listen || updated.EndpointPath != cfg.EndpointPath {
				slog.Warn("Listen address and endpoint path changes need a restart", "path", path)
			}
			next, err := newAgent(ctx, updated, root.enableOtel)
			if err != nil {
				slog.Error("Failed to create agent from new configuration", "path", path, "error", err)
				return
			}
			srv.SetAgent(next)
			slog.Info("Switched model", "model", next.Model())
		})
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	return g.Wait()
}

func newAgent(ctx context.Context, cfg *config.Config, tracing bool) (*agent.Agent, error) {
	env, err := environment.NewDefaultProvider(cfg.EnvFiles...)
	if err != nil {
		return nil, err
	}

	var opts []agent.Opt
	if tracing {
		opts = append(opts, agent.WithTracer(otel.Tracer(AppName)))
	}
	return agent.New(ctx, &cfg.Model, env, opts...)
}

// monitorStdin cancels the server once stdin reaches EOF, which happens when
// the parent process holding the other end of the pipe dies.
func monitorStdin(ctx context.Context, cancel context.CancelFunc, stdin io.Reader) {
	if c, ok := stdin.(io.Closer); ok {
		go func() {
			<-ctx.Done()
			_ = c.Close()
		}()
	}

	buf := make([]byte, 1)
	for {
		n, err := stdin.Read(buf)
		if err != nil || n == 0 {
			if ctx.Err() == nil {
				slog.Info("stdin closed, parent process likely died, shutting down")
				cancel()
			}
			return
		}
	}
}
