package openai

import (
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/docker/angi/pkg/chat"
)

type blockKind int

const (
	noBlock blockKind = iota
	textBlock
	toolBlock
)

// streamAdapter turns Chat Completions chunks into block-structured chat
// events. The API has no explicit block boundaries, so they are synthesized:
// a block starts when the delta kind or tool call index changes and every
// open block is stopped when a finish reason arrives.
type streamAdapter struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]

	block     blockKind
	toolIndex int64
	pending   []chat.Event
	finished  bool
}

func newStreamAdapter(stream *ssestream.Stream[openai.ChatCompletionChunk]) *streamAdapter {
	return &streamAdapter{stream: stream, toolIndex: -1}
}

func (a *streamAdapter) Recv() (chat.Event, error) {
	for len(a.pending) == 0 {
		if a.finished || !a.stream.Next() {
			if err := a.stream.Err(); err != nil {
				return chat.Event{}, err
			}
			return chat.Event{}, io.EOF
		}
		a.convert(a.stream.Current())
	}

	ev := a.pending[0]
	a.pending = a.pending[1:]
	return ev, nil
}

func (a *streamAdapter) convert(c openai.ChatCompletionChunk) {
	if len(c.Choices) == 0 {
		return
	}
	// Only a single completion is ever requested.
	choice := c.Choices[0]

	if text := choice.Delta.Content; text != "" {
		if a.block != textBlock {
			a.stopBlock()
			a.block = textBlock
			a.emit(chat.TextStart())
		}
		a.emit(chat.TextDelta(text))
	}

	for _, tc := range choice.Delta.ToolCalls {
		if a.block != toolBlock || tc.Index != a.toolIndex {
			a.stopBlock()
			a.block = toolBlock
			a.toolIndex = tc.Index
			a.emit(chat.ToolUseStart(tc.ID, tc.Function.Name))
		}
		if args := tc.Function.Arguments; args != "" {
			a.emit(chat.ToolInputDelta(args))
		}
	}

	if choice.FinishReason != "" {
		a.stopBlock()
		a.emit(chat.MessageStop())
		a.finished = true
	}
}

func (a *streamAdapter) stopBlock() {
	if a.block != noBlock {
		a.emit(chat.BlockStop())
		a.block = noBlock
	}
}

func (a *streamAdapter) emit(ev chat.Event) {
	a.pending = append(a.pending, ev)
}

func (a *streamAdapter) Close() {
	if a.stream != nil {
		a.stream.Close()
	}
}
