package component

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/docker/angi/pkg/concurrent"
)

// ErrDuplicateID is returned when a second, distinct instance registers under
// an id that is already taken.
var ErrDuplicateID = errors.New("duplicate component id")

type Opt func(*Registry)

// WithLenientIDs makes id collisions a warning: the newest registration wins.
func WithLenientIDs() Opt {
	return func(r *Registry) {
		r.strict = false
	}
}

// Registry is the directory of live components, keyed by id.
// It is safe for concurrent use.
type Registry struct {
	entries *concurrent.Map[string, Definition]
	strict  bool
}

func NewRegistry(opts ...Opt) *Registry {
	r := &Registry{
		entries: concurrent.NewMap[string, Definition](),
		strict:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts def or refreshes the entry already held by the same
// instance. An empty ID is derived from the description and an empty
// InstanceID is generated; later refreshes must reuse the returned
// Definition's InstanceID.
func (r *Registry) Register(def Definition) (Definition, error) {
	def.ID = ResolveID(def.ID, def.Description)
	if def.InstanceID == "" {
		def.InstanceID = NewInstanceID()
	}
	if err := ValidateID(def.ID); err != nil {
		return Definition{}, err
	}
	for name := range def.Actions {
		if err := ValidateActionName(name); err != nil {
			return Definition{}, fmt.Errorf("component %q: %w", def.ID, err)
		}
	}

	err := r.entries.Compute(def.ID, func(existing Definition, exists bool) (Definition, bool, error) {
		if exists && existing.InstanceID != def.InstanceID {
			if r.strict {
				return existing, false, fmt.Errorf("%w: %q is already registered by another instance; give one of them an explicit id", ErrDuplicateID, def.ID)
			}
			slog.Warn("Duplicate component id, keeping newest registration", "id", def.ID, "previous_instance", existing.InstanceID, "instance", def.InstanceID)
		}
		return def, true, nil
	})
	if err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Unregister removes the entry for id when it is still held by instanceID.
// An instance that lost its id to a newer registration leaves it alone.
func (r *Registry) Unregister(id, instanceID string) {
	removed := r.entries.DeleteFunc(id, func(existing Definition) bool {
		return existing.InstanceID == instanceID
	})
	if removed {
		slog.Debug("Unregistered component", "id", id, "instance", instanceID)
	}
}

func (r *Registry) Lookup(id string) (Definition, bool) {
	return r.entries.Load(id)
}

// Snapshot returns the registered components sorted by id. Later mutations of
// the registry do not affect the returned slice.
func (r *Registry) Snapshot() []Definition {
	defs := r.entries.Values()
	slices.SortFunc(defs, func(a, b Definition) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return defs
}

func (r *Registry) Len() int {
	return r.entries.Length()
}

func (r *Registry) Clear() {
	r.entries.Clear()
}
