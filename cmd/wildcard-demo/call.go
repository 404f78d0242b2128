// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/brillout/wildcard-api-sub000"
	"github.com/brillout/wildcard-api-sub000/jsons"
)

type callFlags struct {
	server    string
	transport string
	shortURL  bool
	retries   int
	timeout   time.Duration
}

var callOpts callFlags

var callCmd = &cobra.Command{
	Use:   "call <endpoint> [args...]",
	Short: "Call an endpoint of a running server",
	Long: `Call an endpoint of a running server.

Each argument is read as extended JSON; anything that does not parse is
passed as a string:

  wildcard-demo call hello Ada
  wildcard-demo call login '"ada"'
  wildcard-demo call --transport jsonrpc now`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []wildcard.DialOption{
			wildcard.WithTransport(callOpts.transport),
			wildcard.WithRetries(callOpts.retries),
			wildcard.WithClientLogger(logger),
		}
		if callOpts.shortURL {
			opts = append(opts, wildcard.WithShortURL())
		}
		client, err := wildcard.Dial(callOpts.server, opts...)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if callOpts.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, callOpts.timeout)
			defer cancel()
		}

		result, err := client.Call(ctx, args[0], parseArgs(args[1:])...)
		if err != nil {
			logger.Debug("call failed", zap.String("endpoint", args[0]), zap.Error(err))
			return err
		}
		out, err := jsons.Serialize(result)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(pretty.Pretty([]byte(out))))
		return nil
	},
}

func init() {
	callCmd.Flags().StringVar(&callOpts.server, "server", "http://localhost:3000", "server URL")
	callCmd.Flags().StringVar(&callOpts.transport, "transport", wildcard.DefaultTransport, "transport: http, jsonrpc or grpc")
	callCmd.Flags().BoolVar(&callOpts.shortURL, "short-url", false, "always send arguments in the request body")
	callCmd.Flags().IntVar(&callOpts.retries, "retries", 0, "retries after connection failures")
	callCmd.Flags().DurationVar(&callOpts.timeout, "timeout", 30*time.Second, "call timeout")
}

func parseArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, r := range raw {
		v, err := jsons.Deserialize(r)
		if err != nil {
			args[i] = r
			continue
		}
		args[i] = v
	}
	return args
}
