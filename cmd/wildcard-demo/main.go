// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command wildcard-demo serves a few demo endpoints and calls endpoints of
// a running server from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	verbose bool
}

var (
	flags  globalFlags
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "wildcard-demo",
	Short: "Serve and call wildcard endpoints",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if flags.verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "development logging")
	rootCmd.AddCommand(serveCmd, callCmd)
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
