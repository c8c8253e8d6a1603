package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/go/xdr"
	"go.uber.org/zap"

	"poolScope/internal/metrics"
	"poolScope/internal/model"
	"poolScope/internal/scval"
	"poolScope/internal/storage"
)

// DeployedTopic is the first topic of a pool deployment event.
const DeployedTopic = "deployed"

// ErrMalformedDeployment is returned when a deployment event does not carry
// a contract address payload.
var ErrMalformedDeployment = errors.New("malformed deployment event")

// Ingestor records pools announced by deployment events.
type Ingestor struct {
	registry storage.Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewIngestor(registry storage.Registry, logger *zap.Logger, m *metrics.Metrics) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewDiscard()
	}
	return &Ingestor{registry: registry, logger: logger, metrics: m}
}

// OnLedgerClose appends every pool deployed in the closed ledger to the
// registry, in event order. Events with any other first topic are ignored.
// A malformed deployment fails the ledger before anything is appended.
func (i *Ingestor) OnLedgerClose(ctx context.Context, lc model.LedgerClose) error {
	if i.registry == nil {
		return fmt.Errorf("registry is nil")
	}

	var entries []model.RegistryEntry
	for _, event := range lc.Events {
		if !IsDeployment(event) {
			continue
		}
		i.metrics.DeploymentsIngested.WithLabelValues().Inc()

		address, err := deployedAddress(event.Value)
		if err != nil {
			return fmt.Errorf("%w: event %s at ledger %d: %v", ErrMalformedDeployment, event.ID, lc.Sequence, err)
		}
		entries = append(entries, model.RegistryEntry{Address: address, Ledger: lc.Sequence, EventID: event.ID})
	}
	if len(entries) == 0 {
		return nil
	}

	if batcher, ok := i.registry.(storage.BatchAppender); ok {
		if err := batcher.AppendBatch(ctx, entries); err != nil {
			i.metrics.RegistryAppends.WithLabelValues("error").Add(float64(len(entries)))
			return fmt.Errorf("append %d pools at ledger %d: %w", len(entries), lc.Sequence, err)
		}
		i.metrics.RegistryAppends.WithLabelValues("ok").Add(float64(len(entries)))
		for _, entry := range entries {
			i.logger.Debug("new pool", zap.String("address", entry.Address), zap.Uint32("ledger", lc.Sequence))
		}
		return nil
	}

	for _, entry := range entries {
		if err := i.registry.Append(ctx, entry); err != nil {
			i.metrics.RegistryAppends.WithLabelValues("error").Inc()
			return fmt.Errorf("append %s: %w", entry.Address, err)
		}
		i.metrics.RegistryAppends.WithLabelValues("ok").Inc()
		i.logger.Debug("new pool", zap.String("address", entry.Address), zap.Uint32("ledger", lc.Sequence))
	}
	return nil
}

// IsDeployment reports whether the first topic of event is the deployed symbol.
func IsDeployment(event model.ContractEvent) bool {
	if len(event.Topics) == 0 {
		return false
	}
	topic := event.Topics[0]
	return topic.Type == xdr.ScValTypeScvSymbol && topic.Sym != nil && string(*topic.Sym) == DeployedTopic
}

func deployedAddress(v xdr.ScVal) (string, error) {
	if v.Type != xdr.ScValTypeScvAddress || v.Address == nil {
		return "", fmt.Errorf("payload is %s, want contract address", v.Type.String())
	}
	if v.Address.Type != xdr.ScAddressTypeScAddressTypeContract {
		return "", fmt.Errorf("payload is an account address, want contract address")
	}
	return scval.DecodeAddress(v)
}
