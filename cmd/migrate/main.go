package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gooji/deployer/internal/app/migrate"
	"github.com/gooji/deployer/pkg/config"
	"github.com/gooji/deployer/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration
	var runner migrate.Runner

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the postgres store schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg := config.LoadAPIConfig()
			log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))

			fsys, err := migrate.Source(cfg.MigrationsDir)
			if err != nil {
				return err
			}
			runner, err = migrate.New(cfg.DatabaseURL, fsys, log)
			return err
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "command timeout")

	withTimeout := func(fn func(ctx context.Context) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return fn(ctx)
		}
	}

	var target int64
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration or down to --target",
		Args:  cobra.NoArgs,
		RunE: withTimeout(func(ctx context.Context) error {
			return runner.Down(ctx, target)
		}),
	}
	down.Flags().Int64Var(&target, "target", 0, "target version (optional)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: withTimeout(func(ctx context.Context) error {
				return runner.Ensure(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withTimeout(func(ctx context.Context) error {
				return runner.Status(ctx)
			}),
		},
		down,
	)
	return root
}
