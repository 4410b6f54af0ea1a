package client

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/dispatch"
)

// SessionErrorText replaces the streamed text when a prompt fails midway.
const SessionErrorText = "⚠️ Something went wrong. Please try again."

// Runner produces the chunk stream for one prompt. *Client implements it.
type Runner interface {
	Run(ctx context.Context, prompt string, components []component.Payload) iter.Seq2[chunk.Chunk, error]
}

// Session sends prompts for one consumer. At most one prompt is active:
// sending a new one cancels the previous one, and no chunk of the cancelled
// prompt is dispatched once the new one has started.
//
// Actions are dispatched against the live registry, not the snapshot the
// prompt was built from. Action handlers run while the session lock is held
// and must not call back into the Session.
type Session struct {
	runner   Runner
	registry *component.Registry
	opts     sessionOptions

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	loading    bool
	text       strings.Builder
}

type sessionOptions struct {
	dispatchOpts []dispatch.Opt
	onText       func(string)
}

type SessionOpt func(*sessionOptions)

// WithDispatchOptions configures the dispatcher of every prompt.
func WithDispatchOptions(opts ...dispatch.Opt) SessionOpt {
	return func(o *sessionOptions) {
		o.dispatchOpts = append(o.dispatchOpts, opts...)
	}
}

// WithTextListener is called with each text fragment of the active prompt.
func WithTextListener(fn func(string)) SessionOpt {
	return func(o *sessionOptions) {
		o.onText = fn
	}
}

func NewSession(runner Runner, registry *component.Registry, opts ...SessionOpt) *Session {
	s := &Session{runner: runner, registry: registry}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// SendPrompt cancels any prompt in flight, then streams the answer to
// prompt, dispatching its actions as they arrive. It returns when the stream
// ends or is superseded. A superseded prompt returns no error.
func (s *Session) SendPrompt(ctx context.Context, prompt string) ([]dispatch.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.loading = true
	s.text.Reset()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen {
			s.loading = false
			s.cancel = nil
		}
	}()

	components := component.SerializeAll(s.registry.Snapshot())

	d := dispatch.New(s.registry, slices.Concat(s.opts.dispatchOpts, []dispatch.Opt{dispatch.WithTextHandler(func(text string) {
		s.text.WriteString(text)
		if s.opts.onText != nil {
			s.opts.onText(text)
		}
	})})...)

	for c, err := range s.runner.Run(ctx, prompt, components) {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			slog.Debug("Dropping chunks of a superseded prompt")
			return nil, nil
		}
		if ctx.Err() != nil {
			s.mu.Unlock()
			return nil, nil
		}
		if err != nil {
			slog.Error("Prompt failed", "error", err)
			s.text.Reset()
			s.text.WriteString(SessionErrorText)
			s.mu.Unlock()
			return d.Reports(), err
		}
		d.Dispatch(ctx, c)
		s.mu.Unlock()
	}

	return d.Reports(), nil
}

// Cancel stops the prompt in flight, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// StreamText returns the text received so far for the latest prompt.
func (s *Session) StreamText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}
