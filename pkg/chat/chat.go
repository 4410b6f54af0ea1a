// Package chat defines the raw, provider-neutral event stream produced by
// model adapters and the request they receive.
package chat

import (
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/tools"
)

type EventType string

const (
	EventTextStart      EventType = "text_start"
	EventTextDelta      EventType = "text_delta"
	EventToolUseStart   EventType = "tool_use_start"
	EventToolInputDelta EventType = "tool_input_delta"
	EventBlockStop      EventType = "block_stop"
	EventMessageStop    EventType = "message_stop"
)

// Event is one raw event from a provider stream.
type Event struct {
	Type EventType `json:"type" yaml:"type"`

	// Text is set on text deltas.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// ToolCallID and ToolName are set when a tool-use block starts.
	ToolCallID string `json:"id,omitempty" yaml:"id,omitempty"`
	ToolName   string `json:"name,omitempty" yaml:"name,omitempty"`

	// PartialJSON is a fragment of the tool call arguments.
	PartialJSON string `json:"partial_json,omitempty" yaml:"partial_json,omitempty"`
}

func TextStart() Event { return Event{Type: EventTextStart} }

func TextDelta(text string) Event { return Event{Type: EventTextDelta, Text: text} }

func ToolUseStart(id, name string) Event {
	return Event{Type: EventToolUseStart, ToolCallID: id, ToolName: name}
}

func ToolInputDelta(partialJSON string) Event {
	return Event{Type: EventToolInputDelta, PartialJSON: partialJSON}
}

func BlockStop() Event { return Event{Type: EventBlockStop} }

func MessageStop() Event { return Event{Type: EventMessageStop} }

// MessageStream is a pull-based stream of raw events. Recv returns io.EOF
// once the provider is done.
type MessageStream interface {
	Recv() (Event, error)
	Close()
}

// Request is everything an adapter needs to run one prompt.
type Request struct {
	Prompt       string
	Components   []component.Payload
	Tools        []tools.Tool
	SystemPrompt string
}
