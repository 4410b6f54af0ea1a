package anthropic

import (
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/docker/angi/pkg/chat"
)

// streamAdapter maps Anthropic stream events onto chat events. Events
// without a chat equivalent (message_start, message_delta, pings) are skipped.
type streamAdapter struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func newStreamAdapter(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) *streamAdapter {
	return &streamAdapter{stream: stream}
}

func (a *streamAdapter) Recv() (chat.Event, error) {
	for a.stream.Next() {
		if ev, ok := convertEvent(a.stream.Current()); ok {
			return ev, nil
		}
	}
	if err := a.stream.Err(); err != nil {
		return chat.Event{}, err
	}
	return chat.Event{}, io.EOF
}

func convertEvent(event anthropic.MessageStreamEventUnion) (chat.Event, bool) {
	switch variant := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		switch block := variant.ContentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			return chat.TextStart(), true
		case anthropic.ToolUseBlock:
			return chat.ToolUseStart(block.ID, block.Name), true
		}
	case anthropic.ContentBlockDeltaEvent:
		switch delta := variant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return chat.TextDelta(delta.Text), true
		case anthropic.InputJSONDelta:
			return chat.ToolInputDelta(delta.PartialJSON), true
		}
	case anthropic.ContentBlockStopEvent:
		return chat.BlockStop(), true
	case anthropic.MessageStopEvent:
		return chat.MessageStop(), true
	}
	return chat.Event{}, false
}

func (a *streamAdapter) Close() {
	if a.stream != nil {
		a.stream.Close()
	}
}
