// Package parser turns raw provider events into text and action chunks.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/docker/angi/pkg/chat"
	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/tools"
)

type State int

const (
	StateIdle State = iota
	StateInTextBlock
	StateInToolBlock
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInTextBlock:
		return "in-text-block"
	case StateInToolBlock:
		return "in-tool-block"
	default:
		return "unknown"
	}
}

type toolCall struct {
	id   string
	name string
	args strings.Builder
}

// Parser is the state machine that reconstructs tool calls from a stream.
// Text is emitted as soon as it arrives; tool calls are emitted, in the
// order they were opened, when the message stops.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	state     State
	current   *toolCall
	completed []*toolCall
}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) State() State {
	return p.state
}

// Pending returns the number of closed tool calls waiting for the end of the
// message.
func (p *Parser) Pending() int {
	return len(p.completed)
}

// Feed advances the state machine by one event and returns the chunks it
// produced.
func (p *Parser) Feed(ev chat.Event) []chunk.Chunk {
	switch ev.Type {
	case chat.EventTextStart:
		p.closeBlock()
		p.state = StateInTextBlock

	case chat.EventToolUseStart:
		p.closeBlock()
		p.state = StateInToolBlock
		p.current = &toolCall{id: ev.ToolCallID, name: ev.ToolName}

	case chat.EventTextDelta:
		if p.state == StateInToolBlock {
			slog.Debug("Ignoring text delta inside a tool block", "tool", p.current.name)
			return nil
		}
		if ev.Text == "" {
			return nil
		}
		return []chunk.Chunk{chunk.Text(ev.Text)}

	case chat.EventToolInputDelta:
		if p.state != StateInToolBlock {
			slog.Debug("Ignoring argument delta outside a tool block", "state", p.state)
			return nil
		}
		p.current.args.WriteString(ev.PartialJSON)

	case chat.EventBlockStop:
		p.closeBlock()

	case chat.EventMessageStop:
		p.closeBlock()
		return p.flush()

	default:
		slog.Debug("Ignoring unknown stream event", "type", ev.Type)
	}
	return nil
}

func (p *Parser) closeBlock() {
	if p.current != nil {
		p.completed = append(p.completed, p.current)
		p.current = nil
	}
	p.state = StateIdle
}

func (p *Parser) flush() []chunk.Chunk {
	if len(p.completed) == 0 {
		return nil
	}
	out := make([]chunk.Chunk, 0, len(p.completed))
	for _, call := range p.completed {
		componentID, actionName, ok := tools.SplitName(call.name)
		if !ok {
			slog.Warn("Dropping tool call with unexpected name", "tool", call.name, "id", call.id)
			continue
		}
		out = append(out, chunk.NewAction(componentID, actionName, parseArguments(call)))
	}
	p.completed = nil
	return out
}

func parseArguments(call *toolCall) map[string]any {
	raw := strings.TrimSpace(call.args.String())
	if raw == "" {
		return map[string]any{}
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		slog.Warn("Malformed tool call arguments, using empty parameters", "tool", call.name, "id", call.id, "error", err)
		return map[string]any{}
	}
	if params == nil {
		params = map[string]any{}
	}
	return params
}

// Stream pulls events from s until io.EOF and yields the parsed chunks.
// A receive error is yielded once and ends the sequence. The stream is closed
// when iteration stops.
func Stream(ctx context.Context, s chat.MessageStream) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		defer s.Close()

		p := New()
		for {
			if err := ctx.Err(); err != nil {
				yield(chunk.Chunk{}, err)
				return
			}

			ev, err := s.Recv()
			if errors.Is(err, io.EOF) {
				if p.state == StateInToolBlock || p.Pending() > 0 {
					slog.Warn("Stream ended before the message stopped, dropping tool calls", "pending", p.Pending())
				}
				return
			}
			if err != nil {
				yield(chunk.Chunk{}, err)
				return
			}

			for _, c := range p.Feed(ev) {
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}
