package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/born-ml/graphopt/internal/optimizer"
	"github.com/born-ml/graphopt/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the graphopt HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			opts, err := cfg.OptimizerOptions()
			if err != nil {
				return err
			}

			srv := server.New(server.Options{
				Registry:     optimizer.NewRegistry(),
				Defaults:     opts,
				Validate:     cfg.Optimizer.Validate,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				Logger:       activeLog,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx, cfg.Server.ListenAddr)
		},
	}

	return cmd
}
