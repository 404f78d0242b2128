// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Discoverer fills an empty registry. The server runs it at most once, when
// the first call arrives and nothing is registered.
type Discoverer interface {
	Discover(r *Registry) error
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func(r *Registry) error

func (f DiscovererFunc) Discover(r *Registry) error { return f(r) }

// RegisterSymbol is the symbol an endpoint plugin must export:
//
//	func RegisterEndpoints(r *wildcard.Registry) error
const RegisterSymbol = "RegisterEndpoints"

// PluginDiscoverer loads Go plugins whose path below Root matches Pattern
// and lets each register its endpoints.
type PluginDiscoverer struct {
	Root    string
	Pattern string

	// Open loads one plugin. Nil means plugin.Open.
	Open func(path string) (func(*Registry) error, error)
}

func (d *PluginDiscoverer) Discover(r *Registry) error {
	pattern := d.Pattern
	if pattern == "" {
		pattern = DefaultDiscoveryPattern
	}
	matches, err := doublestar.Glob(os.DirFS(d.Root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)

	open := d.Open
	if open == nil {
		open = openPlugin
	}
	for _, m := range matches {
		path := filepath.Join(d.Root, filepath.FromSlash(m))
		register, err := open(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if err := register(r); err != nil {
			return fmt.Errorf("register %s: %w", path, err)
		}
	}
	return nil
}

func openPlugin(path string) (func(*Registry) error, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(RegisterSymbol)
	if err != nil {
		return nil, err
	}
	register, ok := sym.(func(*Registry) error)
	if !ok {
		return nil, usageErrorf("plugin %s: %s has type %T, want func(*wildcard.Registry) error", path, RegisterSymbol, sym)
	}
	return register, nil
}
