package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/httpclient"
	"github.com/docker/angi/pkg/model/provider/base"
	"github.com/docker/angi/pkg/model/provider/options"
	"github.com/docker/angi/pkg/tools"
)

// Client wraps the Anthropic Messages API.
type Client struct {
	base.Config
	client anthropic.Client
}

// NewClient creates a new Anthropic client from the provided configuration
func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.Provider != "anthropic" {
		return nil, errors.New("model type must be 'anthropic'")
	}
	if env == nil {
		return nil, errors.New("environment provider is required")
	}

	modelOptions := options.Apply(opts...)

	tokenKey := cfg.TokenKey
	if tokenKey == "" {
		tokenKey = "ANTHROPIC_API_KEY"
	}
	values, err := environment.Require(ctx, env, tokenKey)
	if err != nil {
		return nil, err
	}

	httpClient := modelOptions.HTTPClient()
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient()
	}
	requestOptions := []option.RequestOption{
		option.WithAPIKey(values[tokenKey]),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(cfg.BaseURL))
	}
	if retries := modelOptions.MaxRetries(); retries != nil {
		requestOptions = append(requestOptions, option.WithMaxRetries(*retries))
	}

	slog.Debug("Anthropic client created successfully", "model", cfg.Model)

	return &Client{
		Config: base.Config{
			ModelConfig:  *cfg,
			ModelOptions: modelOptions,
			Env:          env,
		},
		client: anthropic.NewClient(requestOptions...),
	}, nil
}

// CreateStream sends one user prompt and streams back the raw events.
func (c *Client) CreateStream(ctx context.Context, req chat.Request) (chat.MessageStream, error) {
	slog.Debug("Creating Anthropic message stream",
		"model", c.ModelConfig.Model,
		"tool_count", len(req.Tools))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.ModelConfig.Model),
		MaxTokens: c.MaxTokens(),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	// An empty tools list is rejected by some models, so it is omitted instead.
	if len(req.Tools) > 0 {
		converted, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = converted
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	return newStreamAdapter(stream), nil
}

func convertTools(requestTools []tools.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(requestTools))
	for _, tool := range requestTools {
		schema, err := tools.SchemaToMap(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("converting schema of %s: %w", tool.Name, err)
		}

		var required []string
		if list, ok := schema["required"].([]any); ok {
			for _, name := range list {
				if s, ok := name.(string); ok {
					required = append(required, s)
				}
			}
		}

		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   required,
				},
			},
		})
	}
	return out, nil
}
