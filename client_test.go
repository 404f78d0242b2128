// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingServer serves s and remembers the paths it was asked for.
type recordingServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newRecordingServer(t *testing.T, s *Server) *recordingServer {
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.EscapedPath())
		rs.mu.Unlock()
		s.ServeHTTP(w, r)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) last() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.paths[len(rs.paths)-1]
}

func TestClientCall(t *testing.T) {
	srv := newRecordingServer(t, newTestServer(t))
	client, err := Dial(srv.URL)
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	got, err := client.Call(ctx, "hello", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", got)
	assert.Equal(t, "/_api/hello/%5B%22Ada%22%5D", srv.last())

	got, err = client.Endpoint("sum")(ctx, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)

	var p point
	require.NoError(t, client.CallInto(ctx, "move", &p, point{X: 1, Y: 2}, 10))
	assert.Equal(t, point{X: 11, Y: 2}, p)

	got, err = client.Call(ctx, "nothing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.Error(t, client.CallInto(ctx, "hello", p))
}

func TestClientArgsPlacement(t *testing.T) {
	srv := newRecordingServer(t, newTestServer(t))
	client, err := Dial(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	// ["..."] adds four characters around the string.
	tests := []struct {
		name   string
		arg    string
		inBody bool
	}{
		{"1999 characters", strings.Repeat("a", MaxURLArgsLen-5), false},
		{"2000 characters", strings.Repeat("a", MaxURLArgsLen-4), true},
		{"multibyte counts runes", strings.Repeat("é", MaxURLArgsLen-5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Call(ctx, "length", tt.arg)
			require.NoError(t, err)
			assert.Equal(t, float64(len([]rune(tt.arg))), got)
			assert.Equal(t, tt.inBody, strings.HasSuffix(srv.last(), "/"+ArgsInBody), srv.last())
		})
	}

	short, err := Dial(srv.URL, WithShortURL())
	require.NoError(t, err)
	got, err := short.Call(ctx, "hello", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", got)
	assert.Equal(t, "/_api/hello/args-in-body", srv.last())
}

func TestCallURL(t *testing.T) {
	tr := &httpTransport{o: &dialOptions{serverURL: "https://example.com", baseURL: "/_api/"}}

	uri, body := tr.callURL("hello", `["Ada"]`)
	assert.Equal(t, "https://example.com/_api/hello/%5B%22Ada%22%5D", uri)
	assert.Nil(t, body)

	uri, body = tr.callURL("hello", strings.Repeat("x", MaxURLArgsLen-1))
	assert.NotContains(t, uri, ArgsInBody)
	assert.Nil(t, body)

	uri, body = tr.callURL("a b", strings.Repeat("x", MaxURLArgsLen))
	assert.Equal(t, "https://example.com/_api/a%20b/args-in-body", uri)
	assert.Len(t, body, MaxURLArgsLen)
}

func TestClientErrors(t *testing.T) {
	srv := newRecordingServer(t, newTestServer(t))
	client, err := Dial(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		endpoint string
		args     []any
		status   int
	}{
		{"doesNotExist", nil, http.StatusNotFound},
		{"fail", nil, http.StatusInternalServerError},
		{"explode", nil, http.StatusInternalServerError},
		{"hello", []any{5}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			_, err := client.Call(ctx, tt.endpoint, tt.args...)
			var cerr *CallError
			require.ErrorAs(t, err, &cerr)
			assert.True(t, cerr.IsCodeFailure)
			assert.False(t, cerr.IsConnectionFailure)
			assert.Equal(t, tt.status, cerr.StatusCode)
			assert.ErrorIs(t, err, ErrCodeFailure)
			assert.NotErrorIs(t, err, ErrConnectionFailure)
			assert.NotContains(t, err.Error(), "secret detail")
		})
	}

	_, err = client.Call(ctx, "unserializableArgs", make(chan int))
	var uerr *UsageError
	require.ErrorAs(t, err, &uerr)
}

func TestClientConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := Dial(url, WithRetries(1))
	require.NoError(t, err)
	_, err = client.Call(context.Background(), "hello", "Ada")

	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.IsConnectionFailure)
	assert.ErrorIs(t, err, ErrConnectionFailure)
	assert.NotErrorIs(t, err, ErrCodeFailure)
}

func TestClientHeaders(t *testing.T) {
	s := newTestServer(t, WithContextFunc(func(r *http.Request) (map[string]any, error) {
		return map[string]any{"user": r.Header.Get("X-User")}, nil
	}))
	srv := httptest.NewServer(s)
	defer srv.Close()

	client, err := Dial(srv.URL+"/", WithHeader("X-User", "dora"))
	require.NoError(t, err)
	got, err := client.Call(context.Background(), "whoami")
	require.NoError(t, err)
	assert.Equal(t, "dora", got)
}

func TestClientCustomBase(t *testing.T) {
	s := newTestServer(t, WithBaseURL("/rpc/v1/"))
	srv := httptest.NewServer(s)
	defer srv.Close()

	client, err := Dial(srv.URL, WithClientBaseURL("/rpc/v1/"))
	require.NoError(t, err)
	got, err := client.Call(context.Background(), "hello", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", got)
}

// The same calls give the same results in-process and over HTTP.
func TestDirectMatchesHTTP(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	remote, err := Dial(srv.URL)
	require.NoError(t, err)
	direct, err := Dial("", WithServer(s))
	require.NoError(t, err)
	ctx := context.Background()

	calls := []struct {
		endpoint string
		args     []any
	}{
		{"hello", []any{"Ada"}},
		{"sum", []any{1.0, 2.5}},
		{"length", []any{"héllo"}},
		{"nothing", nil},
		{"whoami", nil},
		{"doesNotExist", nil},
		{"fail", nil},
		{"explode", nil},
		{"hello", []any{5.0}},
	}
	for _, c := range calls {
		t.Run(c.endpoint, func(t *testing.T) {
			rgot, rerr := remote.Call(ctx, c.endpoint, c.args...)
			dgot, derr := direct.Call(ctx, c.endpoint, c.args...)
			if rerr != nil {
				var rc, dc *CallError
				require.ErrorAs(t, rerr, &rc)
				require.ErrorAs(t, derr, &dc)
				assert.Equal(t, rc.StatusCode, dc.StatusCode)
				assert.Equal(t, rc.IsCodeFailure, dc.IsCodeFailure)
				return
			}
			require.NoError(t, derr)
			assert.Equal(t, rgot, toWire(t, dgot))
		})
	}
}

// toWire passes v through the codec, the way a remote result arrives.
func toWire(t *testing.T, v any) any {
	t.Helper()
	s, err := defaultCodec.Serialize(v)
	require.NoError(t, err)
	out, err := defaultCodec.Deserialize(s)
	require.NoError(t, err)
	return out
}

func TestDialErrors(t *testing.T) {
	_, err := Dial("")
	require.Error(t, err)
	_, err = Dial("http://localhost", WithTransport("carrier-pigeon"))
	require.ErrorContains(t, err, "carrier-pigeon")
	_, err = Dial("http://localhost", WithClientBaseURL("api"))
	require.Error(t, err)

	remote, err := Dial("http://localhost")
	require.NoError(t, err)
	_, err = remote.Bind(map[string]any{"user": "x"})
	var uerr *UsageError
	require.ErrorAs(t, err, &uerr)
}

func TestTransports(t *testing.T) {
	assert.Subset(t, AvailableTransports(), []string{TransportHTTP, TransportJSONRPC})
	assert.True(t, HasTransport(TransportHTTP))
	assert.False(t, HasTransport("carrier-pigeon"))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.True(t, isRetryableError(io.EOF))
	assert.True(t, isRetryableError(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryableError(errors.New("no such host")))
}
