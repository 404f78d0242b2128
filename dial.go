// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultJSONRPCPath is where JSONRPCHandler is expected to be mounted.
const DefaultJSONRPCPath = "/_rpc"

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	serverURL   string
	baseURL     string
	jsonrpcPath string
	shortURL    bool
	transport   string
	codec       Codec
	httpClient  *http.Client
	headers     http.Header
	retries     int
	server      *Server
	logger      *zap.Logger

	// transportOpts holds options only one transport understands.
	transportOpts []any
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithClientBaseURL sets the path prefix the server serves endpoints under.
func WithClientBaseURL(base string) DialOption {
	return func(o *dialOptions) { o.baseURL = base }
}

// WithJSONRPCPath sets where the server mounted its JSON-RPC handler.
func WithJSONRPCPath(path string) DialOption {
	return func(o *dialOptions) { o.jsonrpcPath = path }
}

// WithShortURL always sends arguments in the request body.
func WithShortURL() DialOption {
	return func(o *dialOptions) { o.shortURL = true }
}

// WithHTTPClient sets the HTTP client. Give it a cookie jar to keep
// context fields across calls.
func WithHTTPClient(c *http.Client) DialOption {
	return func(o *dialOptions) { o.httpClient = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) DialOption {
	return func(o *dialOptions) { o.headers.Add(key, value) }
}

// WithRetries retries calls that failed to connect up to n more times.
func WithRetries(n int) DialOption {
	return func(o *dialOptions) { o.retries = n }
}

// WithServer calls endpoints of s in-process instead of over the network.
func WithServer(s *Server) DialOption {
	return func(o *dialOptions) { o.server = s }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *zap.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// Dial returns a client calling the server at serverURL, such as
// "https://example.com". serverURL may be empty with WithServer.
func Dial(serverURL string, opts ...DialOption) (*Client, error) {
	o := &dialOptions{
		serverURL:   strings.TrimRight(serverURL, "/"),
		baseURL:     DefaultBaseURL,
		jsonrpcPath: DefaultJSONRPCPath,
		transport:   DefaultTransport,
		headers:     make(http.Header),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if !strings.HasPrefix(o.baseURL, "/") || !strings.HasSuffix(o.baseURL, "/") {
		return nil, usageErrorf("the base URL must start and end with `/`, got `%s`", o.baseURL)
	}

	c := &Client{opts: o}
	if o.server != nil {
		return c, nil
	}
	if o.serverURL == "" {
		return nil, usageErrorf("a server URL is required unless the client is bound to an in-process server")
	}
	dial, ok := lookupTransport(o.transport)
	if !ok {
		return nil, usageErrorf("unknown transport: %s", o.transport)
	}
	t, err := dial(o)
	if err != nil {
		return nil, err
	}
	c.transport = t
	return c, nil
}
