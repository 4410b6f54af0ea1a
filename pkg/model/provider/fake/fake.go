// Package fake replays a scripted event stream instead of calling a model.
// It backs "angi serve --fake" and tests that need a deterministic model.
package fake

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/docker/angi/pkg/chat"
)

// Provider answers every request with the same script.
type Provider struct {
	events []chat.Event
	err    error

	mu       sync.Mutex
	requests []chat.Request
}

func New(events ...chat.Event) *Provider {
	return &Provider{events: events}
}

// NewFailing returns a provider whose streams fail with err after the
// scripted events.
func NewFailing(err error, events ...chat.Event) *Provider {
	return &Provider{events: events, err: err}
}

// NewFromFile loads a YAML list of events, for example:
//
//	- type: text_delta
//	  text: Done.
//	- type: message_stop
func NewFromFile(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fake script: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Provider, error) {
	var events []chat.Event
	if err := yaml.UnmarshalWithOptions(data, &events, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parsing fake script: %w", err)
	}
	for i, ev := range events {
		switch ev.Type {
		case chat.EventTextStart, chat.EventTextDelta, chat.EventToolUseStart,
			chat.EventToolInputDelta, chat.EventBlockStop, chat.EventMessageStop:
		default:
			return nil, fmt.Errorf("parsing fake script: event %d: unknown type %q", i, ev.Type)
		}
	}
	return New(events...), nil
}

func (p *Provider) ID() string {
	return "fake/script"
}

func (p *Provider) CreateStream(ctx context.Context, req chat.Request) (chat.MessageStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	stream := chat.NewSliceStream(p.events...)
	if p.err == nil {
		return stream, nil
	}
	return &failingStream{SliceStream: stream, err: p.err}, nil
}

// Requests returns every request received so far.
func (p *Provider) Requests() []chat.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}

type failingStream struct {
	*chat.SliceStream
	err error
}

func (s *failingStream) Recv() (chat.Event, error) {
	ev, err := s.SliceStream.Recv()
	if err != nil {
		return chat.Event{}, s.err
	}
	return ev, nil
}
