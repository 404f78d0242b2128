// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"

	"github.com/brillout/wildcard-api-sub000/jsons"
)

// isBrowser is true when running as WebAssembly in a browser, where
// contexts cannot be bound.
var isBrowser = runtime.GOOS == "js"

// EndpointFunc is a remote endpoint as a local function.
type EndpointFunc func(ctx context.Context, args ...any) (any, error)

// Client calls endpoints, either over a transport or directly on an
// in-process Server.
type Client struct {
	opts      *dialOptions
	transport Transport
	bound     map[string]any
}

// Call calls the endpoint name with args.
func (c *Client) Call(ctx context.Context, name string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	if c.opts.server != nil {
		return c.callDirect(ctx, name, args)
	}
	return c.transport.Invoke(ctx, name, args)
}

// CallInto calls the endpoint and converts the result into out, which must
// be a non-nil pointer.
func (c *Client) CallInto(ctx context.Context, name string, out any, args ...any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return usageErrorf("CallInto needs a non-nil pointer, got %T", out)
	}
	result, err := c.Call(ctx, name, args...)
	if err != nil {
		return err
	}
	v, err := bindArg(result, rv.Type().Elem())
	if err != nil {
		return codeFailure(name, 0, fmt.Errorf("decode result: %w", err))
	}
	rv.Elem().Set(v)
	return nil
}

// Endpoint returns the endpoint name as a function.
func (c *Client) Endpoint(name string) EndpointFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		return c.Call(ctx, name, args...)
	}
}

// Bind returns a client whose calls see userContext as the caller-supplied
// context. Only in-process clients on the server can bind a context.
func (c *Client) Bind(userContext map[string]any) (*Client, error) {
	if isBrowser {
		return nil, usageErrorf("a context can only be bound on the server, not in the browser")
	}
	if c.opts.server == nil {
		return nil, usageErrorf("a context can only be bound to a client created WithServer")
	}
	bound := make(map[string]any, len(c.bound)+len(userContext))
	for k, v := range c.bound {
		bound[k] = v
	}
	for k, v := range userContext {
		bound[k] = v
	}
	return &Client{opts: c.opts, transport: c.transport, bound: bound}, nil
}

// Close releases the transport.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) callDirect(ctx context.Context, name string, args []any) (any, error) {
	out := c.opts.server.RunEndpoint(ctx, name, args, c.bound, true)
	if out.Err != nil {
		var (
			missing   *MissingEndpointError
			malformed *MalformedRequestError
			eerr      *EndpointError
		)
		switch {
		case errors.As(out.Err, &eerr):
			return nil, codeFailure(name, http.StatusInternalServerError, out.Err)
		case errors.As(out.Err, &missing):
			return nil, codeFailure(name, http.StatusNotFound, out.Err)
		case errors.As(out.Err, &malformed):
			return nil, codeFailure(name, http.StatusBadRequest, out.Err)
		}
		return nil, codeFailure(name, http.StatusInternalServerError, out.Err)
	}
	if jsons.IsUndefined(out.Result) {
		return nil, nil
	}
	return out.Result, nil
}
