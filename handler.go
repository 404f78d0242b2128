// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// Handle answers one request. It returns nil when the request is not for
// this server, leaving the host framework to route it. It never panics.
func (s *Server) Handle(ctx context.Context, env RequestEnvelope, userContext map[string]any) (resp *ResponseEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Sprintf("[wildcard][Internal Error] %v", r), zap.ByteString("stack", debug.Stack()))
			resp = s.finish(internalErrorResponse())
		}
	}()

	req := parseRequest(env, s.cfg.BaseURL, s.codec)
	switch req.kind {
	case notOurs:
		return nil
	case malformed:
		return s.finish(s.malformedResponse(req))
	case introspection:
		return s.finish(s.introspectionResponse())
	}

	out := s.runEndpoint(ctx, req.name, req.args, userContext, false, env.Headers)
	return s.finish(s.endpointResponse(req, out))
}

// ServeHTTP serves endpoint calls and answers 404 to anything else.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.serve(w, r) {
		http.NotFound(w, r)
	}
}

// Middleware serves endpoint calls and passes every other request to next.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.serve(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// serve reports whether the request was answered.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) bool {
	if !s.owns(r) {
		return false
	}

	env := RequestEnvelope{URL: r.URL.RequestURI(), Method: r.Method, Headers: r.Header}
	if r.Body != nil && r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Malformed request: the request body is too large", http.StatusRequestEntityTooLarge)
				return true
			}
			s.logger.Warn("reading request body failed", zap.Error(err))
			http.Error(w, "Malformed request: the request body cannot be read", http.StatusBadRequest)
			return true
		}
		if len(body) > 0 {
			env.Body = string(body)
		}
	}

	var userContext map[string]any
	if s.contextFunc != nil {
		uc, err := s.contextFunc(r)
		if err != nil {
			s.logger.Error("computing the request context failed", zap.Error(err))
			writeEnvelope(w, s.finish(internalErrorResponse()))
			return true
		}
		userContext = uc
	}

	resp := s.Handle(r.Context(), env, userContext)
	if resp == nil {
		return false
	}
	if tag := resp.Headers.Get("ETag"); tag != "" && resp.StatusCode == http.StatusOK && r.Header.Get("If-None-Match") == tag {
		for _, c := range resp.Headers.Values("Set-Cookie") {
			w.Header().Add("Set-Cookie", c)
		}
		w.Header().Set("ETag", tag)
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	writeEnvelope(w, resp)
	return true
}

// owns reports whether r is addressed to this server, without parsing it.
func (s *Server) owns(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return false
	}
	path := r.URL.EscapedPath()
	return strings.HasPrefix(path, s.cfg.BaseURL) || (r.Method == http.MethodGet && path+"/" == s.cfg.BaseURL)
}

func writeEnvelope(w http.ResponseWriter, resp *ResponseEnvelope) {
	h := w.Header()
	for k, vs := range resp.Headers {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
