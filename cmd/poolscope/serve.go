package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolScope/internal/aggregate"
	"poolScope/internal/config"
	"poolScope/internal/metrics"
	"poolScope/internal/server"
	"poolScope/internal/txsim"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := dialChain(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	reg, err := openRegistry(ctx, cfg.Registry)
	if err != nil {
		return err
	}
	defer reg.Close()

	promReg := newPromRegistry()
	m := metrics.NewMetrics(promReg)

	agg := aggregate.NewAggregator(aggregate.Config{Concurrency: cfg.Concurrency}, reg.registry, chainClient, logger, m)
	pipeline := txsim.NewPipeline(chainClient, cfg.Padding.Padding(), logger, m)

	srv := server.New(server.Options{
		Addr:            cfg.Listen,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Gatherer:        promReg,
	}, agg, pipeline, logger)

	logger.Info("serve start",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.String("listen", cfg.Listen),
		zap.String("registry", cfg.Registry.Backend),
		zap.Uint32("pad_read_bytes", cfg.Padding.ReadBytes),
		zap.Uint32("pad_write_bytes", cfg.Padding.WriteBytes),
		zap.Uint32("pad_resource_fee", cfg.Padding.ResourceFee),
		zap.Uint32("pad_fee", cfg.Padding.Fee),
	)

	return srv.Run(ctx)
}
