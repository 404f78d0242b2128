// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportHTTP    = "http"    // The wildcard wire protocol, default
	TransportJSONRPC = "jsonrpc" // JSON-RPC 2.0 bridge
	TransportGRPC    = "grpc"    // gRPC bridge, requires build tag
)

// DefaultTransport is the default transport type (HTTP)
const DefaultTransport = TransportHTTP

// Transport carries a call to a remote server. Failures are *CallError
// values except for arguments the codec cannot serialize.
type Transport interface {
	Invoke(ctx context.Context, endpoint string, args []any) (any, error)
}

type dialFunc func(o *dialOptions) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{
		TransportHTTP:    dialHTTP,
		TransportJSONRPC: dialJSONRPC,
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
}

func lookupTransport(name string) (dialFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	dial, ok := transports[name]
	return dial, ok
}

// AvailableTransports returns list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
