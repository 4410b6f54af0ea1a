package component

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(id, instance string) Definition {
	return Definition{
		ID:          id,
		InstanceID:  instance,
		Description: "Counter",
		Permissions: Permissions{PermissionRead, PermissionWrite},
		State:       func() any { return map[string]any{"count": 0} },
		Actions: map[string]Action{
			"increment": {
				Description: "Increment the counter",
				Schema:      map[string]string{},
				Execute:     func(context.Context, map[string]any) error { return nil },
			},
		},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Register(counter("c1", "i1"))
	require.NoError(t, err)

	def, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "Counter", def.Description)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryDerivesMissingID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	def, err := r.Register(counter("", "i1"))
	require.NoError(t, err)
	assert.Equal(t, DeriveID("Counter"), def.ID)

	_, ok := r.Lookup(DeriveID("Counter"))
	assert.True(t, ok)
}

func TestRegistryRefreshSameInstance(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for i := range 10 {
		def := counter("c1", "i1")
		def.State = func() any { return i }
		_, err := r.Register(def)
		require.NoError(t, err)
	}

	def, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, 9, def.CurrentState())
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDuplicateIDStrict(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Register(counter("c1", "i1"))
	require.NoError(t, err)

	_, err = r.Register(counter("c1", "i2"))
	require.ErrorIs(t, err, ErrDuplicateID)

	def, _ := r.Lookup("c1")
	assert.Equal(t, "i1", def.InstanceID)
}

func TestRegistryDuplicateIDLenient(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithLenientIDs())
	_, err := r.Register(counter("c1", "i1"))
	require.NoError(t, err)

	_, err = r.Register(counter("c1", "i2"))
	require.NoError(t, err)

	def, _ := r.Lookup("c1")
	assert.Equal(t, "i2", def.InstanceID)
}

func TestRegistryRejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Register(counter("a__b", "i1"))
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	def := counter("c1", "i1")
	def.Actions["bad name"] = Action{}
	_, err = r.Register(def)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	assert.Equal(t, 0, r.Len())
}

func TestRegistryUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Register(counter("c1", "i1"))
	require.NoError(t, err)

	r.Unregister("c1", "i1")
	r.Unregister("c1", "i1")

	_, ok := r.Lookup("c1")
	assert.False(t, ok)

	// The id is free again for another instance.
	_, err = r.Register(counter("c1", "i2"))
	require.NoError(t, err)
}

func TestRegistryUnregisterKeepsNewerInstance(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithLenientIDs())
	_, err := r.Register(counter("c1", "i1"))
	require.NoError(t, err)
	_, err = r.Register(counter("c1", "i2"))
	require.NoError(t, err)

	// The first instance unmounts after the second one took over.
	r.Unregister("c1", "i1")

	def, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "i2", def.InstanceID)

	r.Unregister("c1", "i2")
	_, ok = r.Lookup("c1")
	assert.False(t, ok)
}

func TestRegistryMissingInstanceIDStillCollides(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	form := Definition{Description: "Contact form", Permissions: Permissions{PermissionWrite}}
	first, err := r.Register(form)
	require.NoError(t, err)
	assert.NotEmpty(t, first.InstanceID)

	other := Definition{Description: "Contact form", Permissions: Permissions{PermissionRead}}
	_, err = r.Register(other)
	require.ErrorIs(t, err, ErrDuplicateID)

	live, ok := r.Lookup(first.ID)
	require.True(t, ok)
	assert.Equal(t, Permissions{PermissionWrite}, live.Permissions)

	// Refreshing with the returned instance id is not a collision.
	first.Permissions = Permissions{PermissionRead, PermissionWrite}
	_, err = r.Register(first)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Register(counter("b", "i1"))
	require.NoError(t, err)
	_, err = r.Register(counter("a", "i2"))
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "b", snap[1].ID)

	r.Unregister("a", "i2")
	r.Clear()
	assert.Len(t, snap, 2)
	assert.Empty(t, r.Snapshot())
}

func TestRegistryConcurrentRegistration(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Register(counter("c1", NewInstanceID()))
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	// Exactly one instance wins the id.
	var failures int
	for err := range errs {
		require.ErrorIs(t, err, ErrDuplicateID)
		failures++
	}
	assert.Equal(t, 19, failures)
}
