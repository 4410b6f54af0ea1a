// Package client is the consumer side of the angi endpoint: it posts a
// prompt with the serialized components and decodes the chunk stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/docker/angi/pkg/api"
	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/httpclient"
	"github.com/docker/angi/pkg/sse"
)

// TransportErrorText is yielded in place of a response when the endpoint
// cannot be reached or answers with an error status.
const TransportErrorText = "⚠️ Failed to reach Angi API. Check your server logs."

type Client struct {
	endpoint   string
	httpClient *http.Client
}

type Opt func(*Client)

func WithHTTPClient(c *http.Client) Opt {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New returns a client posting to endpoint, a full URL such as
// http://127.0.0.1:8080/api/angi.
func New(endpoint string, opts ...Opt) *Client {
	c := &Client{endpoint: endpoint}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.NewHTTPClient()
	}
	return c
}

// Run streams the answer to prompt. Failing to reach the endpoint yields a
// single TransportErrorText chunk. Errors while reading the stream, including
// cancellation of ctx, are yielded and end the sequence.
func (c *Client) Run(ctx context.Context, prompt string, components []component.Payload) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		if components == nil {
			components = []component.Payload{}
		}
		body, err := json.Marshal(api.RequestBody{Prompt: prompt, Components: components})
		if err != nil {
			yield(chunk.Chunk{}, fmt.Errorf("encoding request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			yield(chunk.Chunk{}, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", sse.ContentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				yield(chunk.Chunk{}, ctx.Err())
				return
			}
			slog.Warn("Failed to reach angi endpoint", "endpoint", c.endpoint, "error", err)
			yield(chunk.Text(TransportErrorText), nil)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("Angi endpoint returned an error", "endpoint", c.endpoint, "status", resp.StatusCode)
			yield(chunk.Text(TransportErrorText), nil)
			return
		}

		for ch, err := range sse.Read(resp.Body) {
			if err != nil && ctx.Err() != nil {
				err = ctx.Err()
			}
			if !yield(ch, err) || err != nil {
				return
			}
		}
	}
}
