// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brillout/wildcard-api-sub000"
)

func TestDemoEndpoints(t *testing.T) {
	s, err := newDemoServer(serveFlags{dev: true})
	require.NoError(t, err)
	client, err := wildcard.Dial("", wildcard.WithServer(s))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := client.Call(ctx, "hello", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", got)

	_, err = client.Call(ctx, "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)

	ada, err := client.Bind(map[string]any{"user": "ada"})
	require.NoError(t, err)
	var added todo
	require.NoError(t, ada.CallInto(ctx, "addTodo", &added, "write tests"))
	assert.Equal(t, todo{ID: 1, Text: "write tests", Owner: "ada"}, added)

	var list []todo
	require.NoError(t, ada.CallInto(ctx, "todos", &list))
	assert.Equal(t, []todo{added}, list)

	bob, err := client.Bind(map[string]any{"user": "bob"})
	require.NoError(t, err)
	require.NoError(t, bob.CallInto(ctx, "todos", &list))
	assert.Empty(t, list)

	utc, err := client.Bind(map[string]any{"timezone": "UTC"})
	require.NoError(t, err)
	now, err := utc.Call(ctx, "now")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, now.(time.Time).Location())
}

func TestDemoRouter(t *testing.T) {
	s, err := newDemoServer(serveFlags{secret: "correct horse battery staple"})
	require.NoError(t, err)
	router, err := newRouter(s)
	require.NoError(t, err)
	srv := httptest.NewTLSServer(router)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, transport := range []string{wildcard.TransportHTTP, wildcard.TransportJSONRPC} {
		client, err := wildcard.Dial(srv.URL, wildcard.WithHTTPClient(srv.Client()), wildcard.WithTransport(transport))
		require.NoError(t, err)
		got, err := client.Call(context.Background(), "hello", "Ada")
		require.NoError(t, err, transport)
		assert.Equal(t, "Hello Ada", got)
	}
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []any{"Ada", 1.0, []any{true}, "not json"}, parseArgs([]string{`"Ada"`, "1", "[true]", "not json"}))
}
