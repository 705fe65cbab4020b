// Package main provides the entry point for the trustbim CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version       = "0.1.0-dev"
	globalDir     string
	globalConfig  string
	globalRules   string
	globalVerbose bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := newRootCmd()
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trustbim",
		Short:         "Canonicalize BIM entities and validate them against a rule catalog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalDir, "dir", "C", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&globalConfig, "config", "", "Config file (default: .trustbim/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalRules, "rules", "", "Rule catalog file or directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newRulesCmd(),
		newNormalizeCmd(),
		newReviewCmd(),
		newRunsCmd(),
		newRefsCmd(),
		newWatchCmd(),
	)

	return rootCmd
}
