// Package agent runs one prompt against a model on behalf of the server:
// it builds tools and the system prompt from the posted components, streams
// the model response and normalizes it into chunks.
package agent

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/angi/pkg/api"
	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/model/provider"
	"github.com/docker/angi/pkg/model/provider/options"
	"github.com/docker/angi/pkg/parser"
	"github.com/docker/angi/pkg/prompt"
	"github.com/docker/angi/pkg/tools"
)

// ServerErrorText replaces the rest of a streamed answer when the model
// request fails.
const ServerErrorText = "⚠️ An error occurred on the server."

type Agent struct {
	provider     provider.Provider
	modelOptions []options.Opt
	tracer       trace.Tracer
}

// New creates an agent. Unless WithProvider is given, the provider is built
// from cfg, reading its API key from env.
func New(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...Opt) (*Agent, error) {
	a := &Agent{}
	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		if cfg == nil {
			return nil, errors.New("model configuration is required")
		}
		p, err := provider.New(ctx, cfg, env, a.modelOptions...)
		if err != nil {
			return nil, err
		}
		a.provider = p
	}

	return a, nil
}

// Model returns the id of the underlying provider.
func (a *Agent) Model() string {
	return a.provider.ID()
}

func buildRequest(body api.RequestBody) chat.Request {
	return chat.Request{
		Prompt:       body.Prompt,
		Components:   body.Components,
		Tools:        tools.Build(body.Components),
		SystemPrompt: prompt.BuildSystemPrompt(body.Components),
	}
}

// chunks streams the normalized response for body.
func (a *Agent) chunks(ctx context.Context, body api.RequestBody) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		req := buildRequest(body)
		slog.Debug("Processing request",
			"model", a.provider.ID(),
			"components", len(body.Components),
			"tools", len(req.Tools))

		stream, err := a.provider.CreateStream(ctx, req)
		if err != nil {
			yield(chunk.Chunk{}, err)
			return
		}

		for c, err := range parser.Stream(ctx, stream) {
			if !yield(c, err) || err != nil {
				return
			}
		}
	}
}

// ProcessRequest drains the whole response and returns the text and the
// parsed actions. Nothing is dispatched.
func (a *Agent) ProcessRequest(ctx context.Context, body api.RequestBody) (api.Response, error) {
	ctx, span := a.startSpan(ctx, "agent.process_request", body)
	defer span.End()

	var text strings.Builder
	resp := api.Response{Actions: []chunk.Action{}}
	for c, err := range a.chunks(ctx, body) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model stream failed")
			return api.Response{}, err
		}
		switch {
		case c.IsText():
			text.WriteString(c.Text)
		case c.IsAction():
			resp.Actions = append(resp.Actions, *c.Action)
		}
	}
	resp.Text = text.String()

	span.SetAttributes(attribute.Int("angi.actions", len(resp.Actions)))
	span.SetStatus(codes.Ok, "request processed")
	return resp, nil
}

// ProcessRequestStream yields the response chunks as they are parsed. A
// failing model request ends the sequence with a single apology text chunk.
// A cancelled ctx ends it silently.
func (a *Agent) ProcessRequestStream(ctx context.Context, body api.RequestBody) iter.Seq[chunk.Chunk] {
	return func(yield func(chunk.Chunk) bool) {
		ctx, span := a.startSpan(ctx, "agent.process_request_stream", body)
		defer span.End()

		actions := 0
		for c, err := range a.chunks(ctx, body) {
			if err != nil {
				if ctx.Err() != nil {
					slog.Debug("Request cancelled", "error", err)
					span.SetStatus(codes.Ok, "request cancelled")
					return
				}
				slog.Error("Stream processing error", "model", a.provider.ID(), "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "model stream failed")
				yield(chunk.Text(ServerErrorText))
				return
			}
			if c.IsAction() {
				actions++
			}
			if !yield(c) {
				return
			}
		}

		span.SetAttributes(attribute.Int("angi.actions", actions))
		span.SetStatus(codes.Ok, "request processed")
	}
}

func (a *Agent) startSpan(ctx context.Context, name string, body api.RequestBody) (context.Context, trace.Span) {
	if a.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return a.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("angi.model", a.provider.ID()),
		attribute.Int("angi.components", len(body.Components)),
	))
}
