// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wildcard lets a client call server functions over HTTP as if
// they were local, with an ambient per-call context persisted in signed
// cookies.
//
// # Transport Selection
//
// The wildcard wire protocol over HTTP is the default transport. A
// JSON-RPC 2.0 bridge is always available; gRPC needs a build tag:
//
//	go build              # HTTP and JSON-RPC
//	go build -tags grpc   # Enable the gRPC bridge
//
// # Usage
//
// Server usage:
//
//	server, err := wildcard.NewServer(wildcard.WithMode(wildcard.ModeDevelopment))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = server.SetSecretKey(os.Getenv("WILDCARD_SECRET"))
//
//	server.MustRegister("hello", func(name string) string {
//	    return "Hello " + name
//	})
//	server.MustRegister("whoami", func(ctx context.Context) (string, error) {
//	    user, _, err := wildcard.ContextFrom(ctx).String("user")
//	    return user, err
//	})
//
//	http.Handle("/_api/", server)
//
// Client usage:
//
//	client, err := wildcard.Dial("https://example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var greeting string
//	err = client.CallInto(ctx, "hello", &greeting, "Ada")
//
// A client created WithServer calls endpoints in-process; a nested call from
// inside an endpoint shares the outer call's Context.
//
// # Wire Protocol
//
//	GET|POST <base>/<endpoint>/<url-escaped jsons args>
//	POST     <base>/<endpoint>/args-in-body   (args in the body)
//	GET      <base>                           (introspection page)
//
// Arguments of 2000 characters or more go in the body.
//
// # Architecture
//
// The package separates concerns:
//
//   - registry.go: Endpoint signatures and the Registry
//   - engine.go, context.go: per-call Context propagation on context.Context
//   - executor.go: RunEndpoint, the single call path every transport uses
//   - session.go: signed context cookies
//   - router.go: request parsing
//   - response.go, html.go: response building
//   - handler.go: Handle, ServeHTTP and Middleware
//   - client.go, dial.go, transport.go: Client, Dial and the transport registry
//   - http_transport.go: the wire protocol transport (default)
//   - json.go, jsonrpc_server.go: JSON-RPC bridge
//   - grpc.go: gRPC bridge (requires -tags grpc)
//   - config.go, discover.go: YAML config and plugin discovery
//
// Application code calls endpoints by name through a Client, making the
// in-process or remote choice a deployment decision rather than a code
// change.
package wildcard
