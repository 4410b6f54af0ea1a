package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/httpclient"
	"github.com/docker/angi/pkg/model/provider/base"
	"github.com/docker/angi/pkg/model/provider/options"
	"github.com/docker/angi/pkg/tools"
)

// Client talks to the Chat Completions API or any server compatible with it.
type Client struct {
	base.Config
	client openai.Client
}

func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.Provider != "openai" {
		return nil, errors.New("model type must be 'openai'")
	}
	if env == nil {
		return nil, errors.New("environment provider is required")
	}

	modelOptions := options.Apply(opts...)

	tokenKey := cfg.TokenKey
	if tokenKey == "" {
		tokenKey = "OPENAI_API_KEY"
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

	slog.Debug("OpenAI client created successfully", "model", cfg.Model)

	return &Client{
		Config: base.Config{
			ModelConfig:  *cfg,
			ModelOptions: modelOptions,
			Env:          env,
		},
		client: openai.NewClient(requestOptions...),
	}, nil
}

func (c *Client) CreateStream(ctx context.Context, req chat.Request) (chat.MessageStream, error) {
	slog.Debug("Creating OpenAI chat completion stream",
		"model", c.ModelConfig.Model,
		"tool_count", len(req.Tools))

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(c.ModelConfig.Model),
		Messages:  messages,
		MaxTokens: openai.Int(c.MaxTokens()),
	}

	if len(req.Tools) > 0 {
		converted, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = converted
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	return newStreamAdapter(stream), nil
}

func convertTools(requestTools []tools.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(requestTools))
	for _, tool := range requestTools {
		parameters, err := convertParametersToSchema(tool)
		if err != nil {
			return nil, fmt.Errorf("converting schema of %s: %w", tool.Name, err)
		}
		out = append(out, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  parameters,
		}))
	}
	return out, nil
}
