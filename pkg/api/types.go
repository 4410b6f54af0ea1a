// Package api holds the JSON bodies exchanged with the angi endpoint.
package api

import (
	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
)

// RequestBody is what a consumer posts to the endpoint.
type RequestBody struct {
	Prompt     string              `json:"prompt"`
	Components []component.Payload `json:"components"`
}

// Response is the buffered answer: the whole assistant text and every
// parsed action, in the order the model declared them.
type Response struct {
	Text    string         `json:"text"`
	Actions []chunk.Action `json:"actions"`
}

type PingResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model"`
}
