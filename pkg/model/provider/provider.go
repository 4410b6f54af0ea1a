// Package provider creates the model adapter selected by the configuration.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/model/provider/anthropic"
	"github.com/docker/angi/pkg/model/provider/fake"
	"github.com/docker/angi/pkg/model/provider/openai"
	"github.com/docker/angi/pkg/model/provider/options"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Provider turns one request into a stream of raw model events.
type Provider interface {
	// ID returns "provider/model".
	ID() string
	CreateStream(ctx context.Context, req chat.Request) (chat.MessageStream, error)
}

func New(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (Provider, error) {
	slog.Debug("Creating model provider", "provider", cfg.Provider, "model", cfg.Model)

	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(ctx, cfg, env, opts...)
	case "openai":
		return openai.NewClient(ctx, cfg, env, opts...)
	case "fake":
		return fake.NewFromFile(cfg.Script)
	default:
		slog.Error("Unknown provider type", "provider", cfg.Provider)
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
