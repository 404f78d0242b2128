// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

// fakeOpen registers one endpoint per plugin, named after its file.
func fakeOpen(opened *[]string) func(string) (func(*Registry) error, error) {
	return func(path string) (func(*Registry) error, error) {
		*opened = append(*opened, filepath.Base(path))
		name := strings.TrimSuffix(filepath.Base(path), ".endpoints.so")
		return func(r *Registry) error {
			return r.Register(name, func() string { return name })
		}, nil
	}
}

func TestPluginDiscoverer(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "users.endpoints.so", "billing/invoices.endpoints.so", "billing/notes.txt", "deep/a/b/todos.endpoints.so")

	var opened []string
	d := &PluginDiscoverer{Root: root, Open: fakeOpen(&opened)}
	r := NewRegistry()
	require.NoError(t, d.Discover(r))

	assert.Equal(t, []string{"invoices.endpoints.so", "todos.endpoints.so", "users.endpoints.so"}, opened)
	assert.Equal(t, []string{"invoices", "todos", "users"}, r.Names())
}

func TestPluginDiscovererErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "x.endpoints.so")

	d := &PluginDiscoverer{Root: root, Open: func(string) (func(*Registry) error, error) {
		return nil, errors.New("not a plugin")
	}}
	require.ErrorContains(t, d.Discover(NewRegistry()), "not a plugin")

	d = &PluginDiscoverer{Root: root, Pattern: "[", Open: fakeOpen(new([]string))}
	require.Error(t, d.Discover(NewRegistry()))

	d = &PluginDiscoverer{Root: root}
	require.Error(t, d.Discover(NewRegistry()), "an empty file is not a Go plugin")
}

func TestLazyDiscovery(t *testing.T) {
	runs := 0
	s, err := NewServer(WithDiscoverer(DiscovererFunc(func(r *Registry) error {
		runs++
		return r.Register("hello", func(name string) string { return "Hello " + name })
	})))
	require.NoError(t, err)
	assert.Equal(t, 0, runs)

	for i := 0; i < 2; i++ {
		resp := s.Handle(context.Background(), post("/_api/hello/%5B%22Ada%22%5D"), nil)
		require.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, `"Hello Ada"`, resp.Body)
	}
	assert.Equal(t, 1, runs)
}

func TestDiscoverySkippedWhenRegistered(t *testing.T) {
	runs := 0
	s, err := NewServer(WithDiscoverer(DiscovererFunc(func(r *Registry) error {
		runs++
		return nil
	})))
	require.NoError(t, err)
	s.MustRegister("nothing", func() {})

	out := s.RunEndpoint(context.Background(), "nothing", nil, nil, false)
	require.NoError(t, out.Err)
	assert.Equal(t, 0, runs)
}

func TestDiscoveryFromConfig(t *testing.T) {
	root := t.TempDir()
	s, err := NewServer(WithConfig(Config{DiscoveryRoot: root}))
	require.NoError(t, err)
	d, ok := s.discoverer.(*PluginDiscoverer)
	require.True(t, ok)
	assert.Equal(t, root, d.Root)
	assert.Equal(t, DefaultDiscoveryPattern, d.Pattern)

	// Nothing to load: the call reports the missing endpoint.
	out := s.RunEndpoint(context.Background(), "hello", nil, nil, false)
	var missing *MissingEndpointError
	require.ErrorAs(t, out.Err, &missing)
}
