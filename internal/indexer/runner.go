package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"poolScope/internal/chain"
	"poolScope/internal/metrics"
	"poolScope/internal/model"
)

// EventSource is the ledger event feed read by the runner.
type EventSource interface {
	LatestLedger(ctx context.Context) (uint32, error)
	Events(ctx context.Context, q chain.EventQuery) (chain.EventPage, error)
}

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	FromLedger   uint32
	ToLedger     uint32
	Factories    []string
	BatchSize    uint32
	PageLimit    uint
	Follow       bool
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner pulls factory events ledger by ledger and feeds them to the ingestor.
type Runner struct {
	cfg        RunConfig
	source     EventSource
	ingestor   *Ingestor
	checkpoint CheckpointStore
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewRunner builds a Runner. A nil checkpoint store disables checkpointing.
func NewRunner(cfg RunConfig, source EventSource, ingestor *Ingestor, checkpoint CheckpointStore, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewDiscard()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		ingestor:   ingestor,
		checkpoint: checkpoint,
		logger:     logger,
		metrics:    m,
	}
}

// Run executes the ingestion loop. Without Follow it returns once the
// configured range, or the ledgers closed so far, have been processed.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("event source is nil")
	}
	if r.ingestor == nil {
		return fmt.Errorf("ingestor is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Factories) == 0 {
		return fmt.Errorf("at least one factory contract is required")
	}
	if r.cfg.Follow && r.cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be greater than zero")
	}

	from, err := r.startLedger(ctx)
	if err != nil {
		return err
	}

	for {
		latest, err := r.latestLedgerWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest ledger: %w", err)
		}
		to := latest
		if r.cfg.ToLedger != 0 && r.cfg.ToLedger < to {
			to = r.cfg.ToLedger
		}

		if from <= to {
			if err := r.syncRange(ctx, from, to); err != nil {
				return err
			}
			from = to + 1
		} else if !r.cfg.Follow {
			r.logger.Info("nothing to sync", zap.Uint32("from", from), zap.Uint32("to", to))
		}

		if !r.cfg.Follow || (r.cfg.ToLedger != 0 && from > r.cfg.ToLedger) {
			return nil
		}

		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Runner) startLedger(ctx context.Context) (uint32, error) {
	from := r.cfg.FromLedger
	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && last >= from {
			r.logger.Info("resume from checkpoint", zap.Uint32("last_processed", last), zap.Uint32("from", last+1))
			return last + 1, nil
		}
	}
	if from != 0 {
		return from, nil
	}

	latest, err := r.latestLedgerWithRetry(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest ledger: %w", err)
	}
	r.logger.Info("start from latest ledger", zap.Uint32("from", latest))
	return latest, nil
}

func (r *Runner) syncRange(ctx context.Context, from, to uint32) error {
	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, ledgerRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch events", zap.Uint32("from", ledgerRange.From), zap.Uint32("to", ledgerRange.To))

		events, err := r.collectEvents(ctx, ledgerRange)
		if err != nil {
			return fmt.Errorf("get events: %w", err)
		}

		closes := groupByLedger(events)
		for _, lc := range closes {
			if err := r.ingestor.OnLedgerClose(ctx, lc); err != nil {
				return fmt.Errorf("ledger %d: %w", lc.Sequence, err)
			}
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, ledgerRange.To); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		r.metrics.LastProcessedLedger.WithLabelValues().Set(float64(ledgerRange.To))

		r.logger.Info("batch complete",
			zap.Int("events", len(events)),
			zap.Int("ledgers", len(closes)),
			zap.Uint32("from", ledgerRange.From),
			zap.Uint32("to", ledgerRange.To),
		)
	}
	return nil
}

// collectEvents pages through getEvents until the cursor passes the range.
func (r *Runner) collectEvents(ctx context.Context, ledgerRange LedgerRange) ([]model.ContractEvent, error) {
	seen := make(map[string]struct{})
	var out []model.ContractEvent

	query := chain.EventQuery{
		StartLedger: ledgerRange.From,
		ContractIDs: r.cfg.Factories,
		Limit:       r.cfg.PageLimit,
	}
	for {
		page, err := r.eventsWithRetry(ctx, query)
		if err != nil {
			return nil, err
		}

		past := false
		for _, event := range page.Events {
			if event.Ledger < ledgerRange.From {
				continue
			}
			if event.Ledger > ledgerRange.To {
				past = true
				break
			}
			if _, ok := seen[event.ID]; ok {
				continue
			}
			seen[event.ID] = struct{}{}
			out = append(out, event)
		}

		if past || page.Cursor == "" || page.Cursor == query.Cursor {
			return out, nil
		}
		ledger, ok := cursorLedger(page.Cursor)
		if !ok || ledger > ledgerRange.To || (len(page.Events) == 0 && ledger >= ledgerRange.To) {
			return out, nil
		}
		query.Cursor = page.Cursor
	}
}

// groupByLedger splits events into per-ledger closes in ascending order,
// keeping event order within a ledger.
func groupByLedger(events []model.ContractEvent) []model.LedgerClose {
	index := make(map[uint32]int)
	var closes []model.LedgerClose
	for _, event := range events {
		i, ok := index[event.Ledger]
		if !ok {
			i = len(closes)
			index[event.Ledger] = i
			closes = append(closes, model.LedgerClose{Sequence: event.Ledger})
		}
		closes[i].Events = append(closes[i].Events, event)
	}
	sort.SliceStable(closes, func(a, b int) bool { return closes[a].Sequence < closes[b].Sequence })
	return closes
}

// cursorLedger extracts the ledger sequence from an event paging token, whose
// first component is a TOID with the ledger in its upper 32 bits.
func cursorLedger(cursor string) (uint32, bool) {
	head, _, _ := strings.Cut(cursor, "-")
	toid, err := strconv.ParseInt(head, 10, 64)
	if err != nil || toid < 0 {
		return 0, false
	}
	return uint32(toid >> 32), true
}

func retryableBackend(err error) bool {
	return errors.Is(err, chain.ErrBackendUnavailable)
}

func (r *Runner) latestLedgerWithRetry(ctx context.Context) (uint32, error) {
	var latest uint32
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, retryableBackend, func(ctx context.Context) error {
		var err error
		latest, err = r.source.LatestLedger(ctx)
		if err != nil {
			r.logger.Warn("latest ledger fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (r *Runner) eventsWithRetry(ctx context.Context, query chain.EventQuery) (chain.EventPage, error) {
	var page chain.EventPage
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, retryableBackend, func(ctx context.Context) error {
		var err error
		page, err = r.source.Events(ctx, query)
		if err != nil {
			r.logger.Warn("get events failed", zap.Error(err), zap.Uint32("start", query.StartLedger), zap.String("cursor", query.Cursor))
		}
		return err
	})
	return page, err
}
