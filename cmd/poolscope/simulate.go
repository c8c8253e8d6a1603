package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"poolScope/internal/config"
	"poolScope/internal/metrics"
	"poolScope/internal/txsim"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	req, err := cfg.Request()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := dialChain(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	pipeline := txsim.NewPipeline(chainClient, cfg.Padding.Padding(), logger, metrics.NewDiscard())
	resp, err := pipeline.Simulate(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(resp)
}
