package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kyber-swap",
	Short: "A CLI for token swaps through the Kyber Network aggregator",
	Long: `kyber-swap is a command-line tool for swapping ERC20 tokens and ETH
through the Kyber Network proxy. It checks allowances, estimates gas with a
safety margin, asks before every transaction and watches the expected rate.

Examples:
  kyber-swap currencies
  kyber-swap rate ETH KNC --watch
  kyber-swap swap 1 ETH to KNC
  kyber-swap receipt <tx-hash> --watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.kyber-swap.yaml)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// newLogger writes colored structured logs to stderr. Verbose forces debug.
func newLogger(verbose bool, level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}
	if verbose {
		slogLevel = slog.LevelDebug
	}

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(log)
	return log
}
