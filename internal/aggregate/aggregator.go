// Package aggregate builds pool summaries by reading each registered pool's
// instance configuration and current-period counters from ledger storage.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellar/go/xdr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolScope/internal/metrics"
	"poolScope/internal/model"
	"poolScope/internal/period"
	"poolScope/internal/scval"
	"poolScope/internal/storage"
)

const defaultConcurrency = 8

// Reader is the ledger storage used by the aggregator.
type Reader interface {
	LatestLedger(ctx context.Context) (uint32, error)
	InstanceStorage(ctx context.Context, contract string) (scval.Snapshot, error)
	// PersistentEntries returns persistent storage entries of contract.
	// Backends that cannot enumerate storage return only the requested keys.
	PersistentEntries(ctx context.Context, contract string, wanted []xdr.ScVal) (scval.Snapshot, error)
}

// Config controls aggregation behavior.
type Config struct {
	// Concurrency bounds parallel per-pool reads.
	Concurrency int
}

// Report is one pool listing: summaries in registry order plus the pools
// that could not be aggregated.
type Report struct {
	Ledger   uint32              `json:"ledger"`
	Pools    []model.PoolSummary `json:"pools"`
	Failures []model.PoolFailure `json:"failures"`
}

// Aggregator produces pool summaries from the registry and ledger storage.
type Aggregator struct {
	cfg      Config
	registry storage.Registry
	reader   Reader
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewAggregator(cfg Config, registry storage.Registry, reader Reader, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewDiscard()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Aggregator{
		cfg:      cfg,
		registry: registry,
		reader:   reader,
		logger:   logger,
		metrics:  m,
	}
}

// Pools returns the summaries of every pool that aggregated successfully.
func (a *Aggregator) Pools(ctx context.Context) ([]model.PoolSummary, error) {
	report, err := a.Summaries(ctx)
	if err != nil {
		return nil, err
	}
	return report.Pools, nil
}

type poolResult struct {
	summary model.PoolSummary
	err     error
}

// Summaries aggregates every registered pool. A pool that fails is reported
// in Failures and does not affect the others. Registry addresses that repeat
// are aggregated once, at their first position.
func (a *Aggregator) Summaries(ctx context.Context) (Report, error) {
	if a.registry == nil {
		return Report{}, fmt.Errorf("registry is nil")
	}
	if a.reader == nil {
		return Report{}, fmt.Errorf("ledger reader is nil")
	}

	timer := prometheus.NewTimer(a.metrics.AggregationDuration.WithLabelValues())
	defer timer.ObserveDuration()

	entries, err := a.registry.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list registry: %w", err)
	}
	addresses := uniqueAddresses(entries)

	ledger, err := a.reader.LatestLedger(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("get latest ledger: %w", err)
	}

	results := make([]poolResult, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			summary, err := a.aggregatePool(gctx, address, ledger)
			results[i] = poolResult{summary: summary, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{
		Ledger:   ledger,
		Pools:    make([]model.PoolSummary, 0, len(addresses)),
		Failures: []model.PoolFailure{},
	}
	for i, res := range results {
		if res.err == nil {
			report.Pools = append(report.Pools, res.summary)
			continue
		}
		failure := model.PoolFailure{Address: addresses[i], Stage: "unknown", Error: res.err.Error()}
		var poolErr *PoolError
		if errors.As(res.err, &poolErr) {
			failure.Stage = string(poolErr.Stage)
			failure.Error = poolErr.Err.Error()
		}
		report.Failures = append(report.Failures, failure)
		a.metrics.PoolFailures.WithLabelValues(failure.Stage).Inc()
		a.logger.Warn("skip pool", zap.String("address", failure.Address), zap.String("stage", failure.Stage), zap.Error(res.err))
	}
	a.metrics.PoolsReported.WithLabelValues().Set(float64(len(report.Pools)))

	a.logger.Info("aggregate complete",
		zap.Uint32("ledger", ledger),
		zap.Int("registered", len(entries)),
		zap.Int("pools", len(report.Pools)),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}

func (a *Aggregator) aggregatePool(ctx context.Context, address string, ledger uint32) (model.PoolSummary, error) {
	fail := func(stage Stage, err error) (model.PoolSummary, error) {
		return model.PoolSummary{}, &PoolError{Address: address, Stage: stage, Err: err}
	}

	instance, err := a.reader.InstanceStorage(ctx, address)
	if err != nil {
		return fail(StageInstance, err)
	}
	cfg, err := DecodePoolConfig(instance)
	if err != nil {
		return fail(StageConfig, err)
	}

	current, err := period.Current(ledger, cfg.GenesisPeriod, cfg.Periods)
	if err != nil {
		return fail(StagePeriod, err)
	}
	wanted, err := CounterKeys(current)
	if err != nil {
		return fail(StagePeriod, err)
	}

	entries, err := a.reader.PersistentEntries(ctx, address, wanted)
	if err != nil {
		return fail(StageStorage, err)
	}

	acc := NewAccumulator(current)
	for _, entry := range entries {
		key, ok, err := ParseCounterKey(entry.Key)
		if err != nil {
			a.logger.Warn("corrupt counter key", zap.String("address", address), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		matched, err := acc.Add(key, entry.Val)
		if err != nil {
			return fail(StageCounters, err)
		}
		if matched {
			a.logger.Debug("counter",
				zap.String("address", address),
				zap.String("counter", string(key.Counter)),
				zap.Int64("period", current),
			)
		}
	}

	return model.NewPoolSummary(address, cfg, acc.Result()), nil
}

func uniqueAddresses(entries []model.RegistryEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.Address]; ok {
			continue
		}
		seen[entry.Address] = struct{}{}
		out = append(out, entry.Address)
	}
	return out
}
