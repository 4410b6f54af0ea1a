// Package dispatch executes parsed actions against live components.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
	"github.com/docker/angi/pkg/concurrent"
)

type Reason string

const (
	ReasonUnknownComponent Reason = "unknown_component"
	ReasonWriteDenied      Reason = "write_denied"
	ReasonUnknownAction    Reason = "unknown_action"
	ReasonInvalidParams    Reason = "invalid_params"
	ReasonHandlerFailed    Reason = "handler_failed"
)

// Report describes an action that was dropped or failed.
type Report struct {
	ComponentID string
	ActionName  string
	Reason      Reason
	Err         error
}

func (r Report) Error() string {
	msg := fmt.Sprintf("%s on %s.%s", r.Reason, r.ComponentID, r.ActionName)
	if r.Err != nil {
		msg += ": " + r.Err.Error()
	}
	return msg
}

func (r Report) Unwrap() error {
	return r.Err
}

// Lookup resolves a component id against live state.
type Lookup interface {
	Lookup(id string) (component.Definition, bool)
}

type Opt func(*Dispatcher)

// WithSchemaValidation rejects actions whose parameters do not match the
// declared schema instead of passing them to the handler.
func WithSchemaValidation() Opt {
	return func(d *Dispatcher) {
		d.validate = true
	}
}

// WithTextHandler forwards every text fragment to fn as it arrives.
func WithTextHandler(fn func(text string)) Opt {
	return func(d *Dispatcher) {
		d.onText = fn
	}
}

// Dispatcher routes chunks in arrival order. Text is accumulated (and
// optionally forwarded), actions are executed one at a time. Text and Reports
// may be read from other goroutines while a stream is being dispatched.
type Dispatcher struct {
	components Lookup
	validate   bool
	onText     func(string)

	mu      sync.Mutex
	text    strings.Builder
	reports *concurrent.Slice[Report]
}

func New(components Lookup, opts ...Opt) *Dispatcher {
	d := &Dispatcher{
		components: components,
		reports:    concurrent.NewSlice[Report](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one chunk. It returns a non-nil report when an action was
// dropped or its handler failed; it never panics because of a handler.
func (d *Dispatcher) Dispatch(ctx context.Context, c chunk.Chunk) *Report {
	switch {
	case c.IsText():
		d.mu.Lock()
		d.text.WriteString(c.Text)
		d.mu.Unlock()
		if d.onText != nil {
			d.onText(c.Text)
		}
		return nil
	case c.IsAction():
		report := d.execute(ctx, *c.Action)
		if report != nil {
			d.reports.Append(*report)
		}
		return report
	default:
		slog.Debug("Ignoring unknown chunk", "type", c.Type)
		return nil
	}
}

func (d *Dispatcher) execute(ctx context.Context, a chunk.Action) *Report {
	report := func(reason Reason, err error) *Report {
		return &Report{ComponentID: a.ComponentID, ActionName: a.ActionName, Reason: reason, Err: err}
	}

	def, ok := d.components.Lookup(a.ComponentID)
	if !ok {
		slog.Warn("Action targets an unknown component", "component", a.ComponentID, "action", a.ActionName)
		return report(ReasonUnknownComponent, nil)
	}
	if !def.Permissions.CanWrite() {
		slog.Warn("Action targets a component without write permission", "component", a.ComponentID, "action", a.ActionName)
		return report(ReasonWriteDenied, nil)
	}
	action, ok := def.Action(a.ActionName)
	if !ok || action.Execute == nil {
		slog.Warn("Action not found on component", "component", a.ComponentID, "action", a.ActionName)
		return report(ReasonUnknownAction, nil)
	}
	if d.validate {
		if err := validateParams(action.Schema, a.Params); err != nil {
			slog.Warn("Action parameters do not match schema", "component", a.ComponentID, "action", a.ActionName, "error", err)
			return report(ReasonInvalidParams, err)
		}
	}

	if err := invoke(ctx, action.Execute, a.Params); err != nil {
		slog.Error("Action handler failed", "component", a.ComponentID, "action", a.ActionName, "error", err)
		return report(ReasonHandlerFailed, err)
	}
	slog.Debug("Action executed", "component", a.ComponentID, "action", a.ActionName)
	return nil
}

var errHandlerPanic = errors.New("action handler panicked")

func invoke(ctx context.Context, fn component.ActionFunc, params map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()
	return fn(ctx, params)
}

// Run dispatches every chunk of seq and yields it onward unchanged. It stops
// at the first stream error, which is yielded too.
func (d *Dispatcher) Run(ctx context.Context, seq iter.Seq2[chunk.Chunk, error]) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		for c, err := range seq {
			if err != nil {
				yield(c, err)
				return
			}
			d.Dispatch(ctx, c)
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Drain dispatches the whole sequence and returns the first stream error.
func (d *Dispatcher) Drain(ctx context.Context, seq iter.Seq2[chunk.Chunk, error]) error {
	for _, err := range d.Run(ctx, seq) {
		if err != nil {
			return err
		}
	}
	return nil
}

// Text returns the text accumulated so far.
func (d *Dispatcher) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text.String()
}

// Reports returns the dropped or failed actions so far.
func (d *Dispatcher) Reports() []Report {
	return d.reports.All()
}
