package client

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/dispatch"
	"github.com/docker/angi/pkg/model/provider/fake"
)

// counter is a component whose "add" action records every call.
type counter struct {
	mu    sync.Mutex
	calls []float64
}

func (c *counter) definition() component.Definition {
	return component.Definition{
		ID:          "counter",
		Description: "Counter",
		Permissions: component.Permissions{component.PermissionRead, component.PermissionWrite},
		State: func() any {
			c.mu.Lock()
			defer c.mu.Unlock()
			return map[string]any{"calls": len(c.calls)}
		},
		Actions: map[string]component.Action{
			"add": {
				Description: "Add n",
				Schema:      map[string]string{"n": "number"},
				Execute: func(_ context.Context, params map[string]any) error {
					n, _ := params["n"].(float64)
					c.mu.Lock()
					defer c.mu.Unlock()
					c.calls = append(c.calls, n)
					return nil
				},
			},
		},
	}
}

func (c *counter) recorded() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.calls...)
}

func newRegistry(t *testing.T, defs ...component.Definition) *component.Registry {
	t.Helper()

	r := component.NewRegistry()
	for _, def := range defs {
		_, err := r.Register(def)
		require.NoError(t, err)
	}
	return r
}

func TestSessionEndToEnd(t *testing.T) {
	t.Parallel()

	p := fake.New(
		chat.TextStart(),
		chat.TextDelta("Adding "),
		chat.TextDelta("two."),
		chat.BlockStop(),
		chat.ToolUseStart("toolu_1", "counter__add"),
		chat.ToolInputDelta(`{"n":2}`),
		chat.BlockStop(),
		chat.ToolUseStart("toolu_2", "gone__add"),
		chat.BlockStop(),
		chat.MessageStop(),
	)

	c := &counter{}
	var fragments []string
	s := NewSession(New(startServer(t, p)), newRegistry(t, c.definition()), WithTextListener(func(text string) {
		fragments = append(fragments, text)
	}))

	reports, err := s.SendPrompt(t.Context(), "add two")
	require.NoError(t, err)

	assert.Equal(t, []float64{2}, c.recorded())
	assert.Equal(t, "Adding two.", s.StreamText())
	assert.Equal(t, []string{"Adding ", "two."}, fragments)
	assert.False(t, s.IsLoading())
	require.Len(t, reports, 1)
	assert.Equal(t, dispatch.ReasonUnknownComponent, reports[0].Reason)

	// The prompt was built from the registry snapshot.
	requests := p.Requests()
	require.Len(t, requests, 1)
	require.Len(t, requests[0].Tools, 1)
	assert.Equal(t, "counter__add", requests[0].Tools[0].Name)
}

// gatedRunner yields its first chunk right away and the rest only once
// release is closed.
type gatedRunner struct {
	started chan struct{}
	release chan struct{}
	first   chunk.Chunk
	rest    []chunk.Chunk
}

func (r *gatedRunner) Run(ctx context.Context, _ string, _ []component.Payload) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		if !yield(r.first, nil) {
			return
		}
		close(r.started)
		<-r.release
		for _, c := range r.rest {
			if !yield(c, nil) {
				return
			}
		}
		if ctx.Err() != nil {
			yield(chunk.Chunk{}, ctx.Err())
		}
	}
}

type switchRunner struct {
	mu      sync.Mutex
	runners []Runner
}

func (s *switchRunner) Run(ctx context.Context, prompt string, components []component.Payload) iter.Seq2[chunk.Chunk, error] {
	s.mu.Lock()
	r := s.runners[0]
	s.runners = s.runners[1:]
	s.mu.Unlock()
	return r.Run(ctx, prompt, components)
}

type sliceRunner []chunk.Chunk

func (r sliceRunner) Run(context.Context, string, []component.Payload) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		for _, c := range r {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func TestSessionNewPromptCancelsPrevious(t *testing.T) {
	t.Parallel()

	first := &gatedRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
		first:   chunk.NewAction("counter", "add", map[string]any{"n": float64(1)}),
		rest: []chunk.Chunk{
			chunk.Text("stale"),
			chunk.NewAction("counter", "add", map[string]any{"n": float64(100)}),
		},
	}
	second := sliceRunner{
		chunk.Text("fresh"),
		chunk.NewAction("counter", "add", map[string]any{"n": float64(2)}),
	}

	c := &counter{}
	s := NewSession(&switchRunner{runners: []Runner{first, second}}, newRegistry(t, c.definition()))

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.SendPrompt(t.Context(), "one")
		firstDone <- err
	}()

	select {
	case <-first.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first prompt never started")
	}
	assert.True(t, s.IsLoading())

	_, err := s.SendPrompt(t.Context(), "two")
	require.NoError(t, err)

	close(first.release)
	require.NoError(t, <-firstDone)

	assert.Equal(t, []float64{1, 2}, c.recorded())
	assert.Equal(t, "fresh", s.StreamText())
	assert.False(t, s.IsLoading())
}

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context, string, []component.Payload) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		_ = yield(chunk.Text("partial"), nil) && yield(chunk.Chunk{}, r.err)
	}
}

func TestSessionStreamError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewSession(failingRunner{err: boom}, component.NewRegistry())

	_, err := s.SendPrompt(t.Context(), "hi")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, SessionErrorText, s.StreamText())
	assert.False(t, s.IsLoading())
}

func TestSessionCancelIsSilent(t *testing.T) {
	t.Parallel()

	runner := &gatedRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
		first:   chunk.Text("Hel"),
		rest:    []chunk.Chunk{chunk.Text("lo")},
	}
	s := NewSession(runner, component.NewRegistry())

	done := make(chan error, 1)
	go func() {
		_, err := s.SendPrompt(t.Context(), "hi")
		done <- err
	}()

	<-runner.started
	s.Cancel()
	close(runner.release)

	require.NoError(t, <-done)
	assert.False(t, s.IsLoading())
	assert.Equal(t, "Hel", s.StreamText())
}
