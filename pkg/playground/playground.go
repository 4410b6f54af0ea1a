// Package playground provides in-memory components described in a YAML
// file, so prompts can be tried from a terminal without a user interface.
//
// A playground component keeps its state as a map. Each of its actions
// stores the received parameters into that map, key by key.
package playground

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
)

// Spec describes one component of a playground file.
type Spec struct {
	ID          string                `yaml:"id,omitempty"`
	Description string                `yaml:"description" validate:"required"`
	Permissions []string              `yaml:"permissions,omitempty" validate:"dive,oneof=read write"`
	State       map[string]any        `yaml:"state,omitempty"`
	Actions     map[string]ActionSpec `yaml:"actions,omitempty" validate:"dive"`
}

type ActionSpec struct {
	Description string            `yaml:"description,omitempty"`
	Schema      map[string]string `yaml:"schema,omitempty"`
}

// Hook runs before an action changes the state. Returning an error leaves
// the state untouched and fails the action.
type Hook func(ctx context.Context, action chunk.Action) error

type Component struct {
	spec       Spec
	instanceID string

	mu    sync.Mutex
	state map[string]any
}

var validate = validator.New()

// Load reads a YAML list of component specs from path.
func Load(path string) ([]*Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading components file: %w", err)
	}
	components, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return components, nil
}

// LoadGlob loads every file matching the patterns, which may use ** to
// match directories recursively. Each pattern must match at least one file.
func LoadGlob(patterns ...string) ([]*Component, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid components pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no components file matches %q", pattern)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if !slices.Contains(files, m) {
				files = append(files, m)
			}
		}
	}

	var components []*Component
	for _, f := range files {
		loaded, err := Load(f)
		if err != nil {
			return nil, err
		}
		components = append(components, loaded...)
	}
	return components, nil
}

func Parse(data []byte) ([]*Component, error) {
	var specs []Spec
	if err := yaml.UnmarshalWithOptions(data, &specs, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parsing components: %w", err)
	}

	components := make([]*Component, 0, len(specs))
	for i, spec := range specs {
		if err := validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		components = append(components, New(spec))
	}
	return components, nil
}

func New(spec Spec) *Component {
	state := maps.Clone(spec.State)
	if state == nil {
		state = map[string]any{}
	}
	return &Component{
		spec:       spec,
		instanceID: component.NewInstanceID(),
		state:      state,
	}
}

// State returns a copy of the current state.
func (c *Component) State() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.state)
}

// Definition returns the component ready to be registered. hook, when not
// nil, sees every action before it is applied.
func (c *Component) Definition(hook Hook) component.Definition {
	permissions := make(component.Permissions, 0, len(c.spec.Permissions))
	for _, p := range c.spec.Permissions {
		permissions = append(permissions, component.Permission(p))
	}

	id := component.ResolveID(c.spec.ID, c.spec.Description)
	actions := make(map[string]component.Action, len(c.spec.Actions))
	for name, spec := range c.spec.Actions {
		actions[name] = component.Action{
			Description: spec.Description,
			Schema:      spec.Schema,
			Execute: func(ctx context.Context, params map[string]any) error {
				if hook != nil {
					call := chunk.NewAction(id, name, params)
					if err := hook(ctx, *call.Action); err != nil {
						return err
					}
				}
				c.apply(params)
				return nil
			},
		}
	}

	return component.Definition{
		ID:          id,
		InstanceID:  c.instanceID,
		Description: c.spec.Description,
		Permissions: permissions,
		State: func() any {
			return c.State()
		},
		Actions: actions,
	}
}

func (c *Component) apply(params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.state, params)
}
