package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/app"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/pkg/logs"
)

func NewSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Complete booked timeslots whose end time has passed",
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newLoopCommand())

	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	slog.SetDefault(logs.New(cfg))
	return cfg, nil
}

func newRunCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var runner *scheduling.SweepRunner
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&runner),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := fxApp.Stop(context.Background()); err != nil {
					slog.Warn("sweep shutdown", "err", err)
				}
			}()

			n, err := runner.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Printf("Completed %d timeslots.\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Maximum time for the sweep")

	return cmd
}

func newLoopCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Sweep on the configured interval until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Invoke(func(lc fx.Lifecycle, runner *scheduling.SweepRunner) {
					ctx, cancel := context.WithCancel(context.Background())
					done := make(chan struct{})
					lc.Append(fx.Hook{
						OnStart: func(context.Context) error {
							go func() {
								defer close(done)
								runner.Loop(ctx)
							}()
							return nil
						},
						OnStop: func(stopCtx context.Context) error {
							cancel()
							select {
							case <-done:
								return nil
							case <-stopCtx.Done():
								return stopCtx.Err()
							}
						},
					})
				}),
				fx.StopTimeout(shutdownTimeout),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			).Run()
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for graceful shutdown")

	return cmd
}
