// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailure marks calls where the transport never produced a
	// response. These are safe to retry.
	ErrConnectionFailure = errors.New("wildcard: connection failure")

	// ErrCodeFailure marks calls that reached the server but did not succeed.
	ErrCodeFailure = errors.New("wildcard: code failure")
)

// UsageError reports integrator misconfiguration: a bad config key, a
// premature context access, an invalid registration.
type UsageError struct {
	Msg string
	Err error
}

func usageErrorf(format string, args ...any) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return "[wildcard][Wrong Usage] " + e.Msg + ": " + e.Err.Error()
	}
	return "[wildcard][Wrong Usage] " + e.Msg
}

func (e *UsageError) Unwrap() error { return e.Err }

// MalformedRequestError is a request the router cannot turn into a call.
// Its message is safe to send to the client.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed request: " + e.Reason
}

// MissingEndpointError is a call to a name nobody registered.
type MissingEndpointError struct {
	Endpoint string
}

func (e *MissingEndpointError) Error() string {
	return fmt.Sprintf("endpoint `%s` does not exist", e.Endpoint)
}

// EndpointError wraps an error returned, or a panic raised, by endpoint code.
type EndpointError struct {
	Endpoint string
	Err      error
	Stack    []byte
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint `%s` failed: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// PanicError is the error recorded when endpoint code panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// CallError is what a Client returns for every failed call. Exactly one of
// IsConnectionFailure and IsCodeFailure is set.
type CallError struct {
	Endpoint            string
	StatusCode          int
	IsConnectionFailure bool
	IsCodeFailure       bool
	Err                 error
}

func (e *CallError) Error() string {
	kind := "code failure"
	if e.IsConnectionFailure {
		kind = "connection failure"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("wildcard: endpoint `%s`: %s (status %d): %v", e.Endpoint, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("wildcard: endpoint `%s`: %s: %v", e.Endpoint, kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Is matches the two classification sentinels.
func (e *CallError) Is(target error) bool {
	switch target {
	case ErrConnectionFailure:
		return e.IsConnectionFailure
	case ErrCodeFailure:
		return e.IsCodeFailure
	}
	return false
}

func connectionFailure(endpoint string, err error) *CallError {
	return &CallError{Endpoint: endpoint, IsConnectionFailure: true, Err: err}
}

func codeFailure(endpoint string, status int, err error) *CallError {
	return &CallError{Endpoint: endpoint, StatusCode: status, IsCodeFailure: true, Err: err}
}
