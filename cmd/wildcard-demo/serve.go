// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brillout/wildcard-api-sub000"
)

const (
	sweepInterval = time.Minute
	sweepMaxAge   = 10 * time.Minute
	shutdownGrace = 5 * time.Second
)

type serveFlags struct {
	addr   string
	config string
	secret string
	dev    bool
}

var serveOpts serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newDemoServer(serveOpts)
		if err != nil {
			return err
		}
		router, err := newRouter(s)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go s.Engine().RunSweeper(ctx, sweepInterval, sweepMaxAge)

		srv := &http.Server{Addr: serveOpts.addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		logger.Info("serving", zap.String("addr", serveOpts.addr), zap.String("base_url", s.Config().BaseURL))

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", ":3000", "listen address")
	serveCmd.Flags().StringVar(&serveOpts.config, "config", "", "YAML config file")
	serveCmd.Flags().StringVar(&serveOpts.secret, "secret", "", "secret key signing context cookies")
	serveCmd.Flags().BoolVar(&serveOpts.dev, "dev", false, "development mode")
}

func newDemoServer(opts serveFlags) (*wildcard.Server, error) {
	cfg := wildcard.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = wildcard.LoadConfig(opts.config); err != nil {
			return nil, err
		}
	}
	if opts.secret != "" {
		cfg.SecretKey = opts.secret
	}
	if opts.dev {
		cfg.Mode = wildcard.ModeDevelopment
	}

	s, err := wildcard.NewServer(
		wildcard.WithConfig(cfg),
		wildcard.WithLogger(logger),
		wildcard.WithContextFunc(func(r *http.Request) (map[string]any, error) {
			if tz := r.Header.Get("X-Timezone"); tz != "" {
				return map[string]any{"timezone": tz}, nil
			}
			return nil, nil
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := registerDemoEndpoints(s.Registry()); err != nil {
		return nil, fmt.Errorf("register demo endpoints: %w", err)
	}
	return s, nil
}

func newRouter(s *wildcard.Server) (http.Handler, error) {
	rpcHandler, err := s.JSONRPCHandler()
	if err != nil {
		return nil, err
	}
	r := chi.NewRouter()
	r.Use(s.Middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle(wildcard.DefaultJSONRPCPath, rpcHandler)
	return r, nil
}
