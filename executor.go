// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Outcome is the settled result of one endpoint call.
type Outcome struct {
	Result    any
	Err       error
	Mutations []Mutation
}

// RunEndpoint calls the endpoint name in-process. userContext becomes the
// caller-supplied context layer. With isDirectCall, a ctx already inside a
// call (and no userContext) shares that call's Context, and its writes are
// harvested by the outer call.
func (s *Server) RunEndpoint(ctx context.Context, name string, args []any, userContext map[string]any, isDirectCall bool) Outcome {
	return s.runEndpoint(ctx, name, args, userContext, isDirectCall, nil)
}

func (s *Server) runEndpoint(ctx context.Context, name string, args []any, userContext map[string]any, isDirectCall bool, headers http.Header) Outcome {
	s.discover()
	ep, ok := s.registry.Get(name)
	if !ok {
		return Outcome{Err: &MissingEndpointError{Endpoint: name}}
	}

	var (
		h     *hook
		owned = true
	)
	switch live, inCall := s.engine.current(ctx); {
	case !isDirectCall:
		ctx, h = s.engine.enter(ctx, userContext, func() map[string]any { return s.cookieLayer(headers) })
	case inCall && len(userContext) == 0:
		h, owned = live, false
	default:
		ctx, h = s.engine.enterFallback(ctx, userContext)
	}

	result, err := s.invoke(ctx, ep, h, args)
	out := Outcome{Result: result, Err: err}
	if owned {
		out.Mutations = h.harvest()
		h.release()
	}
	return out
}

func (s *Server) invoke(ctx context.Context, ep *Endpoint, h *hook, args []any) (result any, err error) {
	in, err := ep.bind(ctx, &Context{hook: h}, args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &EndpointError{Endpoint: ep.Name, Err: &PanicError{Value: r}, Stack: debug.Stack()}
		} else if err != nil {
			err = &EndpointError{Endpoint: ep.Name, Err: err}
		}
		if eerr, ok := err.(*EndpointError); ok {
			s.logger.Error("endpoint failed",
				zap.String("endpoint", ep.Name),
				zap.Error(eerr.Err),
				zap.ByteString("stack", eerr.Stack))
		}
	}()
	return ep.call(in)
}
