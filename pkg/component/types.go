package component

import (
	"context"
	"slices"
)

type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

type Permissions []Permission

func (p Permissions) Has(perm Permission) bool {
	return slices.Contains(p, perm)
}

func (p Permissions) CanRead() bool  { return p.Has(PermissionRead) }
func (p Permissions) CanWrite() bool { return p.Has(PermissionWrite) }

// ActionFunc performs an action with the parameters parsed from the model's
// tool call. Values are whatever encoding/json produced for the arguments.
type ActionFunc func(ctx context.Context, params map[string]any) error

// Action is a named operation a component lets the assistant invoke.
type Action struct {
	Description string
	// Schema maps parameter names to primitive JSON types ("string",
	// "number", "boolean", ...). Every parameter is required.
	Schema  map[string]string
	Execute ActionFunc
}

// Definition is a live, mounted component.
type Definition struct {
	ID string
	// InstanceID tells a refresh of the same mounted instance apart from a
	// different component claiming the same id. Register fills it when empty.
	InstanceID  string
	Description string
	Permissions Permissions
	// State returns the current externally visible state. It is called on
	// demand, never cached.
	State   func() any
	Actions map[string]Action
}

// CurrentState returns the component's state, or nil when it has no accessor.
func (d Definition) CurrentState() any {
	if d.State == nil {
		return nil
	}
	return d.State()
}

func (d Definition) Action(name string) (Action, bool) {
	a, ok := d.Actions[name]
	return a, ok
}

// ActionNames returns the action names sorted.
func (d Definition) ActionNames() []string {
	names := make([]string, 0, len(d.Actions))
	for name := range d.Actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
