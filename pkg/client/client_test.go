package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/angi/pkg/agent"
	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/model/provider/fake"
	"github.com/docker/angi/pkg/server"
	"github.com/docker/angi/pkg/sse"
)

func startServer(t *testing.T, p *fake.Provider) string {
	t.Helper()

	a, err := agent.New(t.Context(), nil, nil, agent.WithProvider(p))
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(a).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api/angi"
}

func collect(t *testing.T, seq func(func(chunk.Chunk, error) bool)) ([]chunk.Chunk, error) {
	t.Helper()

	var chunks []chunk.Chunk
	for c, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func TestRun(t *testing.T) {
	t.Parallel()

	p := fake.New(
		chat.TextDelta("Hi"),
		chat.ToolUseStart("toolu_1", "form1__fillField"),
		chat.ToolInputDelta(`{"field":"name","value":"Alice"}`),
		chat.BlockStop(),
		chat.MessageStop(),
	)
	c := New(startServer(t, p))

	chunks, err := collect(t, c.Run(t.Context(), "fill my name", nil))
	require.NoError(t, err)
	assert.Equal(t, []chunk.Chunk{
		chunk.Text("Hi"),
		chunk.NewAction("form1", "fillField", map[string]any{"field": "name", "value": "Alice"}),
	}, chunks)

	requests := p.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "fill my name", requests[0].Prompt)
	assert.Empty(t, requests[0].Components)
}

func TestRunErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	chunks, err := collect(t, New(srv.URL).Run(t.Context(), "hi", nil))
	require.NoError(t, err)
	assert.Equal(t, []chunk.Chunk{chunk.Text(TransportErrorText)}, chunks)
}

func TestRunUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	chunks, err := collect(t, New(url).Run(t.Context(), "hi", nil))
	require.NoError(t, err)
	assert.Equal(t, []chunk.Chunk{chunk.Text(TransportErrorText)}, chunks)
}

func TestRunUnterminatedStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sse.SetHeaders(w.Header())
		_, _ = w.Write([]byte("data: {\"type\":\"text\",\"text\":\"cut\"}\n\n"))
	}))
	t.Cleanup(srv.Close)

	chunks, err := collect(t, New(srv.URL).Run(t.Context(), "hi", nil))
	require.ErrorIs(t, err, sse.ErrUnterminated)
	assert.Equal(t, []chunk.Chunk{chunk.Text("cut")}, chunks)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := collect(t, New(startServer(t, fake.New())).Run(ctx, "hi", nil))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunSendsComponents(t *testing.T) {
	t.Parallel()

	p := fake.New(chat.MessageStop())
	c := New(startServer(t, p))

	payloads := component.SerializeAll([]component.Definition{{
		ID:          "secret",
		Description: "Hidden",
		Permissions: component.Permissions{component.PermissionWrite},
		State:       func() any { return "classified" },
	}})
	_, err := collect(t, c.Run(t.Context(), "hi", payloads))
	require.NoError(t, err)

	requests := p.Requests()
	require.Len(t, requests, 1)
	require.Len(t, requests[0].Components, 1)
	assert.False(t, requests[0].Components[0].HasState())
	assert.NotContains(t, requests[0].SystemPrompt, "classified")
}
