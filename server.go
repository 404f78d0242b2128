// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ContextFunc computes the caller-supplied context layer of a request.
type ContextFunc func(r *http.Request) (map[string]any, error)

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	config      Config
	logger      *zap.Logger
	registry    *Registry
	discoverer  Discoverer
	contextFunc ContextFunc
	codec       Codec
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) ServerOption {
	return func(o *serverOptions) { o.config = cfg }
}

// WithBaseURL sets the path prefix endpoints are served under.
func WithBaseURL(base string) ServerOption {
	return func(o *serverOptions) { o.config.BaseURL = base }
}

// WithMode sets development or production mode.
func WithMode(m Mode) ServerOption {
	return func(o *serverOptions) { o.config.Mode = m }
}

// WithoutEtag disables the ETag header.
func WithoutEtag() ServerOption {
	return func(o *serverOptions) { o.config.DisableEtag = true }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithRegistry makes the server serve an existing registry.
func WithRegistry(r *Registry) ServerOption {
	return func(o *serverOptions) { o.registry = r }
}

// WithDiscoverer sets what fills an empty registry on the first call.
func WithDiscoverer(d Discoverer) ServerOption {
	return func(o *serverOptions) { o.discoverer = d }
}

// WithServerCodec sets the codec. Clients must use the same one.
func WithServerCodec(c Codec) ServerOption {
	return func(o *serverOptions) { o.codec = c }
}

// WithContextFunc sets how ServeHTTP computes the caller-supplied context.
func WithContextFunc(fn ContextFunc) ServerOption {
	return func(o *serverOptions) { o.contextFunc = fn }
}

// Server serves registered endpoints over HTTP.
type Server struct {
	cfg         Config
	logger      *zap.Logger
	registry    *Registry
	engine      *Engine
	contextFunc ContextFunc
	codec       Codec

	secretKey   atomic.Pointer[string]
	unpersisted sync.Map

	discoverer   Discoverer
	discoverOnce sync.Once
}

// NewServer returns a server configured by opts.
func NewServer(opts ...ServerOption) (*Server, error) {
	o := &serverOptions{config: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.config.validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.discoverer == nil && o.config.DiscoveryRoot != "" {
		o.discoverer = &PluginDiscoverer{Root: o.config.DiscoveryRoot, Pattern: o.config.DiscoveryPattern}
	}

	s := &Server{
		cfg:         o.config,
		logger:      o.logger,
		registry:    o.registry,
		engine:      NewEngine(o.logger),
		contextFunc: o.contextFunc,
		codec:       o.codec,
		discoverer:  o.discoverer,
	}
	if o.config.SecretKey != "" {
		if err := s.SetSecretKey(o.config.SecretKey); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds an endpoint. See Endpoint for the accepted signatures.
func (s *Server) Register(name string, fn any) error {
	if err := s.registry.Register(name, fn); err != nil {
		s.logger.Error("endpoint registration rejected", zap.String("endpoint", name), zap.Error(err))
		return err
	}
	return nil
}

// MustRegister is Register that panics on error.
func (s *Server) MustRegister(name string, fn any) {
	if err := s.Register(name, fn); err != nil {
		panic(err)
	}
}

// Registry returns the endpoints the server serves.
func (s *Server) Registry() *Registry { return s.registry }

// Engine returns the context propagation engine.
func (s *Server) Engine() *Engine { return s.engine }

// Config returns the effective configuration. The secret key is redacted.
func (s *Server) Config() Config {
	cfg := s.cfg
	cfg.SecretKey = ""
	return cfg
}

func (s *Server) discover() {
	if s.discoverer == nil {
		return
	}
	s.discoverOnce.Do(func() {
		if s.registry.Len() > 0 {
			return
		}
		if err := s.discoverer.Discover(s.registry); err != nil {
			s.logger.Error("endpoint discovery failed", zap.Error(err))
			return
		}
		s.logger.Info("endpoints discovered", zap.Strings("endpoints", s.registry.Names()))
	})
}
