package playground

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/component"
)

const signupForm = `
- id: signup
  description: Signup form
  permissions: [read, write]
  state:
    email: ""
  actions:
    setEmail:
      description: Set the email field
      schema:
        value: string
- description: Read-only banner
  permissions: [read]
  state:
    message: Welcome
`

func TestParse(t *testing.T) {
	t.Parallel()

	components, err := Parse([]byte(signupForm))
	require.NoError(t, err)
	require.Len(t, components, 2)

	form := components[0].Definition(nil)
	assert.Equal(t, "signup", form.ID)
	assert.Equal(t, component.Permissions{component.PermissionRead, component.PermissionWrite}, form.Permissions)
	assert.Equal(t, map[string]any{"email": ""}, form.CurrentState())
	require.Contains(t, form.Actions, "setEmail")
	assert.Equal(t, map[string]string{"value": "string"}, form.Actions["setEmail"].Schema)

	banner := components[1].Definition(nil)
	assert.Equal(t, component.DeriveID("Read-only banner"), banner.ID)
	assert.Empty(t, banner.Actions)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing description": "- id: a\n",
		"bad permission":      "- description: x\n  permissions: [admin]\n",
		"unknown field":       "- description: x\n  handler: foo\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "components.yaml")
	require.NoError(t, os.WriteFile(path, []byte(signupForm), 0o600))

	components, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, components, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadGlob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "forms", "nested"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forms", "a.yaml"), []byte("- id: a\n  description: A\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forms", "nested", "b.yaml"), []byte("- id: b\n  description: B\n"), 0o600))

	components, err := LoadGlob(filepath.Join(dir, "forms", "**", "*.yaml"), filepath.Join(dir, "forms", "a.yaml"))
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, "a", components[0].Definition(nil).ID)
	assert.Equal(t, "b", components[1].Definition(nil).ID)

	_, err = LoadGlob(filepath.Join(dir, "*.json"))
	require.ErrorContains(t, err, "no components file matches")
}

func TestActionUpdatesState(t *testing.T) {
	t.Parallel()

	c := New(Spec{
		ID:          "form",
		Description: "Form",
		Permissions: []string{"read", "write"},
		State:       map[string]any{"email": "", "name": "Ada"},
		Actions:     map[string]ActionSpec{"setEmail": {Schema: map[string]string{"email": "string"}}},
	})

	var seen []chunk.Action
	def := c.Definition(func(_ context.Context, a chunk.Action) error {
		seen = append(seen, a)
		return nil
	})

	require.NoError(t, def.Actions["setEmail"].Execute(t.Context(), map[string]any{"email": "ada@example.com"}))
	assert.Equal(t, map[string]any{"email": "ada@example.com", "name": "Ada"}, c.State())
	assert.Equal(t, []chunk.Action{{
		ComponentID: "form",
		ActionName:  "setEmail",
		Params:      map[string]any{"email": "ada@example.com"},
	}}, seen)
}

func TestHookCanRejectAction(t *testing.T) {
	t.Parallel()

	c := New(Spec{
		ID:          "form",
		Description: "Form",
		Permissions: []string{"write"},
		Actions:     map[string]ActionSpec{"clear": {}},
	})
	rejected := errors.New("rejected")
	def := c.Definition(func(context.Context, chunk.Action) error { return rejected })

	err := def.Actions["clear"].Execute(t.Context(), map[string]any{"email": ""})
	require.ErrorIs(t, err, rejected)
	assert.Empty(t, c.State())
}

func TestInitialStateIsCopied(t *testing.T) {
	t.Parallel()

	initial := map[string]any{"count": 1}
	c := New(Spec{Description: "Counter", State: initial, Actions: map[string]ActionSpec{"set": {}}})
	require.NoError(t, c.Definition(nil).Actions["set"].Execute(t.Context(), map[string]any{"count": 2}))

	assert.Equal(t, 1, initial["count"])
	assert.Equal(t, map[string]any{"count": 2}, c.State())
}
