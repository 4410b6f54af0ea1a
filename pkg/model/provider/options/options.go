package options

import "net/http"

type ModelOptions struct {
	maxTokens  *int64
	httpClient *http.Client
	maxRetries *int
}

func (c *ModelOptions) MaxTokens() *int64 {
	return c.maxTokens
}

func (c *ModelOptions) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *ModelOptions) MaxRetries() *int {
	return c.maxRetries
}

type Opt func(*ModelOptions)

func WithMaxTokens(maxTokens int64) Opt {
	return func(cfg *ModelOptions) {
		cfg.maxTokens = &maxTokens
	}
}

// WithHTTPClient replaces the client used to reach the provider API.
func WithHTTPClient(client *http.Client) Opt {
	return func(cfg *ModelOptions) {
		cfg.httpClient = client
	}
}

func WithMaxRetries(retries int) Opt {
	return func(cfg *ModelOptions) {
		cfg.maxRetries = &retries
	}
}

// Apply folds opts into a ModelOptions value. Later Opts override earlier ones.
func Apply(opts ...Opt) ModelOptions {
	var m ModelOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}
