package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolScope/internal/chain"
	"poolScope/internal/config"
	"poolScope/internal/indexer"
	"poolScope/internal/metrics"
)

func main() {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "poolscope",
		Short:        "Soroban liquidity pool indexer and transaction builder",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest pool deployments from factory events",
		RunE:  runWatch,
	}

	addChainFlags(watchCmd)
	addRegistryFlags(watchCmd)
	watchCmd.Flags().StringSlice("factory", []string{config.DefaultFactory}, "factory contract IDs (comma-separated)")
	watchCmd.Flags().Uint32("from-ledger", 0, "start ledger (inclusive), 0 means checkpoint or latest")
	watchCmd.Flags().Uint32("to-ledger", 0, "end ledger (inclusive), 0 means latest")
	watchCmd.Flags().Bool("follow", false, "keep polling for new ledgers")
	watchCmd.Flags().Duration("poll-interval", 5*time.Second, "poll interval in follow mode")
	watchCmd.Flags().Uint32("batch-size", 2000, "ledgers per batch")
	watchCmd.Flags().Uint("page-limit", 1000, "events per getEvents page")
	watchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	watchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	watchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	watchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	watchCmd.Flags().String("metrics-listen", "", "serve Prometheus metrics on this address, disabled when empty")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List registered pools with their current period counters",
		RunE:  runPools,
	}

	addChainFlags(poolsCmd)
	addRegistryFlags(poolsCmd)
	poolsCmd.Flags().Int("concurrency", 8, "parallel pool reads")
	poolsCmd.Flags().String("out", "", "output pool summaries JSONL (stdout when empty)")
	poolsCmd.Flags().String("errors", "./data/pool_failures.jsonl", "pool failures JSONL")
	poolsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(poolsCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Build a padded unsigned transaction for a pool action",
		RunE:  runSimulate,
	}

	addChainFlags(simulateCmd)
	addPaddingFlags(simulateCmd)
	simulateCmd.Flags().String("action", "", "deposit, update_fee_rewards, withdraw_matured, withdraw, subscribe or claim_reward")
	simulateCmd.Flags().String("contract", "", "pool contract ID")
	simulateCmd.Flags().String("from", "", "signer account")
	simulateCmd.Flags().String("amount", "", "amount for deposit and subscribe")
	simulateCmd.Flags().Int32("period", 0, "period for update_fee_rewards, withdraw_matured and withdraw")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pool listings and simulation over HTTP",
		RunE:  runServe,
	}

	addChainFlags(serveCmd)
	addRegistryFlags(serveCmd)
	addPaddingFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().Int("concurrency", 8, "parallel pool reads")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "stellar-rpc URL")
	cmd.Flags().String("network-passphrase", "", "expected network passphrase")
	cmd.Flags().Uint32("base-fee", 100, "inclusion fee in stroops")
	cmd.Flags().Duration("rpc-timeout", 30*time.Second, "rpc request timeout")
}

func addRegistryFlags(cmd *cobra.Command) {
	cmd.Flags().String("registry-backend", config.BackendJsonl, "registry backend (memory, jsonl, bolt, postgres)")
	cmd.Flags().String("registry-path", "./data/pools.jsonl", "registry file for jsonl and bolt backends")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
}

func addPaddingFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("pad-read-bytes", 200, "extra read bytes added to simulated transactions")
	cmd.Flags().Uint32("pad-write-bytes", 100, "extra write bytes added to simulated transactions")
	cmd.Flags().Uint32("pad-resource-fee", 100, "extra resource fee added to simulated transactions")
	cmd.Flags().Uint32("pad-fee", 100, "extra fee added to simulated transactions")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	factories, err := indexer.ParseContractIDs(cfg.Factories)
	if err != nil {
		return err
	}
	if len(factories) == 0 {
		return fmt.Errorf("factory list is required")
	}

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

	var checkpoint indexer.CheckpointStore
	if cfg.CheckpointEnabled {
		if reg.pg != nil {
			checkpoint = &indexer.DBCheckpointStore{Store: reg.pg, Name: "watch"}
		} else {
			checkpoint = indexer.NewFileCheckpointStore(cfg.Checkpoint)
		}
	}

	promReg := newPromRegistry()
	m := metrics.NewMetrics(promReg)
	if cfg.MetricsListen != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		wait := serveMetrics(metricsCtx, cfg.MetricsListen, promReg, logger)
		defer wait()
		defer stopMetrics()
	}

	ingestor := indexer.NewIngestor(reg.registry, logger, m)
	runner := indexer.NewRunner(indexer.RunConfig{
		FromLedger:   cfg.FromLedger,
		ToLedger:     cfg.ToLedger,
		Factories:    factories,
		BatchSize:    cfg.BatchSize,
		PageLimit:    cfg.PageLimit,
		Follow:       cfg.Follow,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, ingestor, checkpoint, logger, m)

	logger.Info("watch start",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.Strings("factories", factories),
		zap.Uint32("from", cfg.FromLedger),
		zap.Uint32("to", cfg.ToLedger),
		zap.Bool("follow", cfg.Follow),
		zap.Uint32("batch_size", cfg.BatchSize),
		zap.String("registry", cfg.Registry.Backend),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("metrics_listen", cfg.MetricsListen),
	)

	return runner.Run(ctx)
}

func dialChain(ctx context.Context, cfg config.ChainConfig) (*chain.Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		BaseFee:           cfg.BaseFee,
		NetworkPassphrase: cfg.NetworkPassphrase,
		Timeout:           cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	return client, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
