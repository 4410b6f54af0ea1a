package root

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/cli"
	"github.com/docker/angi/pkg/client"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/dispatch"
	"github.com/docker/angi/pkg/httpclient"
	"github.com/docker/angi/pkg/input"
	"github.com/docker/angi/pkg/playground"
)

var (
	errActionRejected = errors.New("rejected by the user")
	errPromptAborted  = errors.New("aborted by the user")
)

type promptFlags struct {
	endpoint       string
	componentFiles []string
	confirm        bool
	validateParams bool
	showState      bool
}

func newPromptCmd(root *rootFlags) *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:   "prompt [message]",
		Short: "Send a prompt to a running angi server",
		Long: `Send a prompt to a running angi server and apply the returned actions to
the components listed in a YAML file.

Without a message the prompt is read from stdin when it is piped, or from an
interactive loop otherwise.`,
		Example: `  angi prompt -f components.yaml "sign me up as ada@example.com"
  echo "clear the form" | angi prompt -f components.yaml
  angi prompt -f components.yaml --confirm`,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.run(cmd, root, args)
		},
	}

	cmd.Flags().StringVarP(&flags.endpoint, "endpoint", "e", "", "URL of the prompt endpoint (default derived from the configuration)")
	cmd.Flags().StringSliceVarP(&flags.componentFiles, "components", "f", nil, "YAML files describing the components exposed to the model (glob patterns allowed, repeatable)")
	cmd.Flags().BoolVar(&flags.confirm, "confirm", false, "Ask before applying each action")
	cmd.Flags().BoolVar(&flags.validateParams, "validate", false, "Check action parameters against their schema before applying them")
	cmd.Flags().BoolVar(&flags.showState, "show-state", false, "Print the state of every component after each answer")

	return cmd
}

type promptRun struct {
	flags      *promptFlags
	out        *cli.Printer
	stdin      io.Reader
	session    *client.Session
	components []*playground.Component
	ids        []string

	approveAll bool
	cancel     context.CancelFunc
}

func (f *promptFlags) run(cmd *cobra.Command, root *rootFlags, args []string) error {
	ctx := cmd.Context()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	endpoint, httpClient, err := f.resolveEndpoint(cfg)
	if err != nil {
		return err
	}

	var components []*playground.Component
	if len(f.componentFiles) > 0 {
		components, err = playground.LoadGlob(f.componentFiles...)
		if err != nil {
			return err
		}
	}

	r := &promptRun{
		flags:      f,
		out:        cli.NewPrinter(cmd.OutOrStdout()),
		stdin:      bufio.NewReader(cmd.InOrStdin()),
		components: components,
		approveAll: !f.confirm,
	}

	var registryOpts []component.Opt
	if !cfg.Strict() {
		registryOpts = append(registryOpts, component.WithLenientIDs())
	}
	registry := component.NewRegistry(registryOpts...)
	for _, c := range components {
		def, err := registry.Register(c.Definition(r.beforeAction))
		if err != nil {
			return err
		}
		r.ids = append(r.ids, def.ID)
	}

	var dispatchOpts []dispatch.Opt
	if f.validateParams {
		dispatchOpts = append(dispatchOpts, dispatch.WithSchemaValidation())
	}
	r.session = client.NewSession(
		client.New(endpoint, client.WithHTTPClient(httpClient)),
		registry,
		client.WithTextListener(r.out.PrintText),
		client.WithDispatchOptions(dispatchOpts...),
	)

	if len(args) > 0 {
		return r.send(ctx, strings.Join(args, " "))
	}
	if !isTerminal(cmd.InOrStdin()) {
		data, err := io.ReadAll(r.stdin)
		if err != nil {
			return fmt.Errorf("reading prompt from stdin: %w", err)
		}
		return r.send(ctx, strings.TrimSpace(string(data)))
	}
	return r.loop(ctx)
}

func (r *promptRun) loop(ctx context.Context) error {
	r.out.Printf("Connected. Type a prompt, or exit to quit.\n")
	for {
		r.out.Print("> ")
		line, err := input.ReadLine(ctx, r.stdin)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				r.out.Println()
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		// Failures are printed, the loop goes on.
		_ = r.send(ctx, line)
	}
}

func (r *promptRun) send(ctx context.Context, prompt string) error {
	if prompt == "" {
		return errors.New("the prompt is empty")
	}

	promptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	reports, err := r.session.SendPrompt(promptCtx, prompt)
	r.out.Println()
	for _, report := range reports {
		r.out.PrintReport(report)
	}

	switch {
	case err != nil:
		r.out.PrintError(err)
		return RuntimeError{Err: err}
	case promptCtx.Err() != nil && ctx.Err() == nil:
		r.out.PrintError(errPromptAborted)
	}

	if r.flags.showState {
		r.printState()
	}
	return nil
}

// beforeAction runs before a playground component applies an action. It is
// called from the session while a prompt is streaming.
func (r *promptRun) beforeAction(ctx context.Context, a chunk.Action) error {
	if r.approveAll {
		r.out.PrintAction(a)
		return nil
	}

	switch r.out.ConfirmAction(ctx, a, r.stdin) {
	case cli.ConfirmationApprove:
		return nil
	case cli.ConfirmationApproveAll:
		r.approveAll = true
		return nil
	case cli.ConfirmationAbort:
		if r.cancel != nil {
			r.cancel()
		}
		return errPromptAborted
	default:
		return errActionRejected
	}
}

func (r *promptRun) printState() {
	for i, c := range r.components {
		state, err := json.Marshal(c.State())
		if err != nil {
			r.out.PrintError(err)
			continue
		}
		r.out.Printf("%s: %s\n", r.ids[i], state)
	}
}

// resolveEndpoint returns the URL of the prompt endpoint and a client able to
// reach it. Without --endpoint it is derived from the server's listen address.
func (f *promptFlags) resolveEndpoint(cfg *config.Config) (string, *http.Client, error) {
	if f.endpoint != "" {
		return f.endpoint, httpclient.NewHTTPClient(), nil
	}

	switch listen := cfg.Listen; {
	case strings.HasPrefix(listen, "unix://"):
		socket := strings.TrimPrefix(listen, "unix://")
		return "http://angi" + cfg.EndpointPath, httpclient.NewHTTPClient(httpclient.WithUnixSocket(socket)), nil
	case strings.HasPrefix(listen, "npipe://"), strings.HasPrefix(listen, "fd://"):
		return "", nil, fmt.Errorf("cannot reach a server listening on %s, pass --endpoint", listen)
	default:
		addr := strings.TrimPrefix(listen, "tcp://")
		if host, port, err := net.SplitHostPort(addr); err == nil {
			switch host {
			case "", "0.0.0.0", "::":
				addr = net.JoinHostPort("127.0.0.1", port)
			}
		}
		return "http://" + addr + cfg.EndpointPath, httpclient.NewHTTPClient(), nil
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// RuntimeError is an error the command has already reported to the user.
type RuntimeError struct {
	Err error
}

func (e RuntimeError) Error() string {
	return e.Err.Error()
}

func (e RuntimeError) Unwrap() error {
	return e.Err
}
