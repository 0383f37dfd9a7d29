// Package main is the seeding client for the item service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/itemstats/internal/seeder"
)

var (
	cfg = seeder.Config{
		BaseURL:    seeder.DefaultBaseURL,
		Count:      seeder.DefaultCount,
		Concurrent: seeder.DefaultConcurrent,
		Timeout:    seeder.DefaultTimeout,
	}
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Seed the item service with random products and check its statistics",
	Long: `seeder creates a batch of products with random prices, prints the
statistics the service computes over them and finally issues parallel
creates to check that every new item receives a distinct id.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zap.NewNop()
		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = l
		}
		defer func() {
			_ = logger.Sync()
		}()

		runner, err := seeder.NewRunner(cfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}

		_, err = runner.Run(cmd.Context())
		return err
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the item service")
	flags.IntVar(&cfg.Count, "count", cfg.Count, "Number of products to create")
	flags.IntVar(&cfg.Concurrent, "concurrent", cfg.Concurrent, "Number of parallel creates in the concurrency check")
	flags.BoolVar(&cfg.Reset, "reset", false, "Remove the data file before seeding")
	flags.StringVar(&cfg.DataFile, "data-file", "db.csv", "Data file removed by --reset")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flags.Uint64Var(&cfg.Seed, "seed", 0, "Price generator seed (0 picks a random one)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every request")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
