package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/model/provider/options"
	"github.com/docker/angi/pkg/tools"
)

const streamBody = `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}

data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"Setting "},"finish_reason":null}]}

data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"values."},"finish_reason":null}]}

data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"c1__setX","arguments":""}}]},"finish_reason":null}]}

data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"value\":5}"}}]},"finish_reason":null}]}

data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","type":"function","function":{"name":"c1__reset","arguments":"{}"}}]},"finish_reason":null}]}

data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`

func newTestServer(t *testing.T, captured *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err == nil {
			_ = json.Unmarshal(body, captured)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, streamBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func modelConfig(baseURL string) *config.ModelConfig {
	return &config.ModelConfig{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		MaxTokens: 1024,
		BaseURL:   baseURL,
		TokenKey:  "OPENAI_API_KEY",
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(t.Context(), modelConfig(""), environment.MapProvider{})

	var envErr *environment.RequiredEnvError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, envErr.Missing)
}

func TestCreateStream(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := newTestServer(t, &captured)

	client, err := NewClient(t.Context(), modelConfig(srv.URL), environment.MapProvider{"OPENAI_API_KEY": "test-key"}, options.WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", client.ID())

	payload := component.Serialize(component.Definition{
		ID:          "c1",
		Permissions: component.Permissions{component.PermissionWrite},
		Actions: map[string]component.Action{
			"setX":  {Description: "Set x", Schema: map[string]string{"value": "number"}},
			"reset": {Description: "Reset"},
		},
	})

	stream, err := client.CreateStream(t.Context(), chat.Request{
		Prompt:       "set x to 5 then reset",
		SystemPrompt: "You are Angi",
		Tools:        tools.Build([]component.Payload{payload}),
	})
	require.NoError(t, err)
	defer stream.Close()

	var events []chat.Event
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		events = append(events, ev)
	}

	assert.Equal(t, []chat.Event{
		chat.TextStart(),
		chat.TextDelta("Setting "),
		chat.TextDelta("values."),
		chat.BlockStop(),
		chat.ToolUseStart("call_1", "c1__setX"),
		chat.ToolInputDelta(`{"value":5}`),
		chat.BlockStop(),
		chat.ToolUseStart("call_2", "c1__reset"),
		chat.ToolInputDelta(`{}`),
		chat.BlockStop(),
		chat.MessageStop(),
	}, events)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])

	toolList := captured["tools"].([]any)
	require.Len(t, toolList, 2)
	fn := toolList[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "c1__reset", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, false, params["additionalProperties"])
}

func TestFixSchemaArrayItems(t *testing.T) {
	t.Parallel()

	payload := component.Serialize(component.Definition{
		ID:          "list",
		Permissions: component.Permissions{component.PermissionWrite},
		Actions: map[string]component.Action{
			"setItems": {Schema: map[string]string{"items": "array", "title": "string"}},
		},
	})
	built := tools.Build([]component.Payload{payload})
	require.Len(t, built, 1)

	params, err := convertParametersToSchema(built[0])
	require.NoError(t, err)

	props := params["properties"].(map[string]any)
	assert.Equal(t, map[string]any{}, props["items"].(map[string]any)["items"])
	assert.NotContains(t, props["title"].(map[string]any), "items")
	assert.Equal(t, []any{"items", "title"}, params["required"])
}
