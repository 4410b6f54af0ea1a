package chat

import "io"

// SliceStream replays a fixed list of events.
type SliceStream struct {
	events []Event
	pos    int
	closed bool
}

func NewSliceStream(events ...Event) *SliceStream {
	return &SliceStream{events: events}
}

func (s *SliceStream) Recv() (Event, error) {
	if s.closed || s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *SliceStream) Close() {
	s.closed = true
}

func (s *SliceStream) Closed() bool {
	return s.closed
}
