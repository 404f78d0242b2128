// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brillout/wildcard-api-sub000/jsons"
)

func TestRegisterRejectsNonFunctions(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		fn   any
		want string
	}{
		{"int", 42, "got int"},
		{"string", "hello", "got string"},
		{"nil", nil, "got nil"},
		{"nilFunc", (func())(nil), "nil func"},
		{"tooMany", func() (int, int, error) { return 0, 0, nil }, "returns 3 values"},
		{"secondNotError", func() (int, string) { return 0, "" }, "second result must be error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.name, tt.fn)
			var uerr *UsageError
			require.ErrorAs(t, err, &uerr)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "[wildcard][Wrong Usage]")
			assert.False(t, r.Exists(tt.name))
		})
	}

	require.Error(t, r.Register("", func() {}))
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("b", func() {})
	r.MustRegister("a", func() int { return 1 })
	r.MustRegister("c", func() error { return nil })

	assert.True(t, r.Exists("a"))
	assert.False(t, r.Exists("z"))
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Equal(t, 3, r.Len())

	// Re-registering replaces.
	r.MustRegister("a", func() int { return 2 })
	ep, ok := r.Get("a")
	require.True(t, ok)
	in, err := ep.bind(context.Background(), nil, nil)
	require.NoError(t, err)
	result, err := ep.call(in)
	require.NoError(t, err)
	assert.Equal(t, 2, result)

	assert.Panics(t, func() { r.MustRegister("bad", 1) })
}

func TestEndpointBind(t *testing.T) {
	call := func(t *testing.T, fn any, args ...any) (any, error) {
		t.Helper()
		ep, err := newEndpoint("ep", fn)
		require.NoError(t, err)
		in, err := ep.bind(context.Background(), nil, args)
		if err != nil {
			return nil, err
		}
		return ep.call(in)
	}

	t.Run("missing arguments are zero values", func(t *testing.T) {
		got, err := call(t, func(a string, b int) []any { return []any{a, b} })
		require.NoError(t, err)
		assert.Equal(t, []any{"", 0}, got)
	})

	t.Run("extra arguments are ignored", func(t *testing.T) {
		got, err := call(t, func(a string) string { return a }, "x", "y", 3.0)
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	})

	t.Run("numbers convert to integers", func(t *testing.T) {
		got, err := call(t, func(a int, b uint8, c float32) []any { return []any{a, b, c} }, 3.0, 255.0, 1.5)
		require.NoError(t, err)
		assert.Equal(t, []any{3, uint8(255), float32(1.5)}, got)
	})

	t.Run("fractions do not convert to integers", func(t *testing.T) {
		_, err := call(t, func(a int) int { return a }, 1.5)
		var merr *MalformedRequestError
		require.ErrorAs(t, err, &merr)
		assert.Contains(t, merr.Reason, "argument 1")
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := call(t, func(a uint8) uint8 { return a }, 256.0)
		require.Error(t, err)
		_, err = call(t, func(a uint) uint { return a }, -1.0)
		require.Error(t, err)

		for _, f := range []float64{1e20, -1e20, 1 << 63} {
			_, err = call(t, func(a int64) int64 { return a }, f)
			var merr *MalformedRequestError
			require.ErrorAs(t, err, &merr, "%v", f)
		}
		for _, f := range []float64{1e20, 1 << 64} {
			_, err = call(t, func(a uint64) uint64 { return a }, f)
			var merr *MalformedRequestError
			require.ErrorAs(t, err, &merr, "%v", f)
		}

		got, err := call(t, func(a int64, b uint64) []any { return []any{a, b} }, float64(-(1 << 63)), float64(1<<63))
		require.NoError(t, err)
		assert.Equal(t, []any{int64(-1 << 63), uint64(1 << 63)}, got)
	})

	t.Run("structs and slices via json", func(t *testing.T) {
		got, err := call(t, func(p point, tags []string) []any { return []any{p, tags} },
			map[string]any{"x": 1.0, "y": 2.0}, []any{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, []any{point{X: 1, Y: 2}, []string{"a", "b"}}, got)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := call(t, func(a string) string { return a }, 5.0)
		var merr *MalformedRequestError
		require.ErrorAs(t, err, &merr)
	})

	t.Run("variadic", func(t *testing.T) {
		got, err := call(t, func(prefix string, xs ...int) []any { return []any{prefix, xs} }, "p", 1.0, 2.0)
		require.NoError(t, err)
		assert.Equal(t, []any{"p", []int{1, 2}}, got)
	})

	t.Run("no result is undefined", func(t *testing.T) {
		got, err := call(t, func() {})
		require.NoError(t, err)
		assert.True(t, jsons.IsUndefined(got))
	})

	t.Run("go context receiver", func(t *testing.T) {
		type key struct{}
		ep, err := newEndpoint("ep", func(ctx context.Context, a string) string {
			return ctx.Value(key{}).(string) + a
		})
		require.NoError(t, err)
		ctx := context.WithValue(context.Background(), key{}, "ctx:")
		in, err := ep.bind(ctx, nil, []any{"x"})
		require.NoError(t, err)
		got, err := ep.call(in)
		require.NoError(t, err)
		assert.Equal(t, "ctx:x", got)
	})
}
