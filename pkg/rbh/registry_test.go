package rbh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/backend/memory"
	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

type stubFactory struct {
	name string
}

func (f stubFactory) Name() string { return f.name }

func (f stubFactory) New(ctx context.Context, u *uri.URI) (rbh.Backend, error) {
	return memory.New(), nil
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	reg := rbh.NewRegistry()
	require.NoError(t, reg.Register(stubFactory{name: "stub"}))

	backend, err := reg.New(context.Background(), "stub:whatever")
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.Root(context.Background(), rbh.Projection{Entry: rbh.EntryID})
	assert.True(t, rbh.IsNoSuchEntry(err))
}

func TestRegistry_DuplicateSchemeRejected(t *testing.T) {
	reg := rbh.NewRegistry()
	require.NoError(t, reg.Register(stubFactory{name: "dup"}))
	assert.Error(t, reg.Register(stubFactory{name: "dup"}))
}

func TestRegistry_NilFactoryRejected(t *testing.T) {
	reg := rbh.NewRegistry()
	assert.Error(t, reg.Register(nil))
}

func TestRegistry_UnknownSchemeUnavailable(t *testing.T) {
	reg := rbh.NewRegistry()

	_, err := reg.New(context.Background(), "nosuchbackend:foo")
	require.Error(t, err)
	assert.True(t, rbh.IsBackendUnavailable(err), "got %v", err)
}

func TestRegistry_MalformedURI(t *testing.T) {
	reg := rbh.NewRegistry()

	_, err := reg.New(context.Background(), "not a uri")
	require.Error(t, err)
	assert.True(t, rbh.IsInvalidInput(err), "got %v", err)
}

func TestRegistry_PluginIndirection(t *testing.T) {
	reg := rbh.NewRegistry()
	require.NoError(t, reg.Register(stubFactory{name: "myplugin"}))

	// rbh:myplugin:arg re-parses as myplugin:arg. The factory is already
	// registered, so no shared library is consulted.
	backend, err := reg.New(context.Background(), "rbh:myplugin:arg")
	require.NoError(t, err)
	backend.Close()

	// A plugin URI without a nested backend name is malformed.
	_, err = reg.New(context.Background(), "rbh:bare")
	require.Error(t, err)
	assert.True(t, rbh.IsInvalidInput(err), "got %v", err)
}

func TestDefaultRegistry_BuiltinMemory(t *testing.T) {
	backend, err := rbh.New(context.Background(), "memory:test")
	require.NoError(t, err)
	defer backend.Close()
}
