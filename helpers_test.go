// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "correct horse battery staple"

type point struct {
	X int    `json:"x"`
	Y int    `json:"y"`
	L string `json:"label,omitempty"`
}

// newTestServer returns a development server with the endpoints most
// tests call.
func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithMode(ModeDevelopment), WithLogger(zaptest.NewLogger(t))}, opts...)
	s, err := NewServer(opts...)
	require.NoError(t, err)

	s.MustRegister("hello", func(name string) string { return "Hello " + name })
	s.MustRegister("whoami", func(ctx context.Context) (string, error) {
		user, _, err := ContextFrom(ctx).String("user")
		return user, err
	})
	s.MustRegister("setUser", func(ctx context.Context, name string) error {
		return ContextFrom(ctx).Set("user", name)
	})
	s.MustRegister("setThenFail", func(c *Context) error {
		if err := c.Set("user", "mallory"); err != nil {
			return err
		}
		return errors.New("boom: secret detail")
	})
	s.MustRegister("fail", func() error { return errors.New("boom: secret detail") })
	s.MustRegister("explode", func() { panic("kaboom") })
	s.MustRegister("unserializable", func() any { return make(chan int) })
	s.MustRegister("cyclic", func() any {
		m := map[string]any{"name": "secret detail"}
		m["self"] = m
		return m
	})
	s.MustRegister("setCyclic", func(ctx context.Context) error {
		m := map[string]any{}
		m["self"] = m
		return ContextFrom(ctx).Set("loop", m)
	})
	s.MustRegister("length", func(s string) int { return utf8.RuneCountInString(s) })
	s.MustRegister("sum", func(xs ...float64) float64 {
		var total float64
		for _, x := range xs {
			total += x
		}
		return total
	})
	s.MustRegister("move", func(p point, dx int) point {
		p.X += dx
		return p
	})
	s.MustRegister("nothing", func() {})
	return s
}

// replayCookies turns the Set-Cookie headers of a response into the Cookie
// header a browser would send back.
func replayCookies(resp *ResponseEnvelope) http.Header {
	r := &http.Request{Header: make(http.Header)}
	for _, c := range (&http.Response{Header: resp.Headers}).Cookies() {
		r.AddCookie(c)
	}
	return r.Header
}

func post(path string) RequestEnvelope {
	return RequestEnvelope{URL: path, Method: http.MethodPost}
}
