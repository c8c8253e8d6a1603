package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolScope/internal/aggregate"
	"poolScope/internal/config"
	"poolScope/internal/metrics"
)

func runPools(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPools(cfgFile, cmd.Flags())
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

	agg := aggregate.NewAggregator(aggregate.Config{Concurrency: cfg.Concurrency}, reg.registry, chainClient, logger, metrics.NewDiscard())

	report, err := agg.Summaries(ctx)
	if err != nil {
		return err
	}

	var outWriter *jsonlWriter
	if cfg.Out == "" {
		outWriter = newStreamWriter(os.Stdout)
	} else {
		outWriter, err = newJSONLWriter(cfg.Out, false)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
	}
	for _, pool := range report.Pools {
		if err := outWriter.Write(pool); err != nil {
			outWriter.Close()
			return err
		}
	}
	if err := outWriter.Close(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	if cfg.Errors != "" {
		errWriter, err := newJSONLWriter(cfg.Errors, false)
		if err != nil {
			return fmt.Errorf("open errors output: %w", err)
		}
		for _, failure := range report.Failures {
			if err := errWriter.Write(failure); err != nil {
				errWriter.Close()
				return err
			}
		}
		if err := errWriter.Close(); err != nil {
			return fmt.Errorf("flush errors output: %w", err)
		}
	}

	logger.Info("pools listed",
		zap.Uint32("ledger", report.Ledger),
		zap.Int("pools", len(report.Pools)),
		zap.Int("failed", len(report.Failures)),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)
	return nil
}
