// Package txsim turns a pool action request into an unsigned, fee-padded
// transaction envelope by resolving the signer sequence, simulating the
// contract call and patching the simulated budget.
package txsim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"poolScope/internal/metrics"
	"poolScope/internal/scval"
)

// Ledger is the ledger backend used by the pipeline.
//
// AccountSequence returns an error wrapping ErrAccountNotFound when the
// account does not exist. SimulateCall returns a base64 transaction envelope,
// or an error wrapping ErrSimulationFailed when the backend rejects the call.
type Ledger interface {
	AccountSequence(ctx context.Context, account string) (int64, error)
	SimulateCall(ctx context.Context, call Call) (string, error)
}

// Response is the result of one simulation request.
type Response struct {
	Tx string `json:"tx"`
}

// Pipeline runs simulate-and-patch requests. It holds no per-request state.
type Pipeline struct {
	ledger  Ledger
	padding Padding
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewPipeline(ledger Ledger, padding Padding, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewDiscard()
	}
	return &Pipeline{ledger: ledger, padding: padding, logger: logger, metrics: m}
}

// Simulate resolves, simulates and patches req.
func (p *Pipeline) Simulate(ctx context.Context, req Request) (Response, error) {
	timer := prometheus.NewTimer(p.metrics.SimulateDuration.WithLabelValues(string(req.Kind)))
	defer timer.ObserveDuration()

	resp, err := p.simulate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(err)
		p.logger.Warn("simulate failed", zap.String("action", string(req.Kind)), zap.String("contract", req.Contract), zap.Error(err))
	}
	p.metrics.SimulateRequests.WithLabelValues(string(req.Kind), outcome).Inc()
	return resp, err
}

func (p *Pipeline) simulate(ctx context.Context, req Request) (Response, error) {
	if p.ledger == nil {
		return Response{}, fmt.Errorf("ledger backend is nil")
	}
	if _, ok := actions[req.Kind]; !ok {
		return Response{}, &SimulationError{Stage: StageResolve, Kind: req.Kind, Err: fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Kind)}
	}
	if _, err := scval.ParseAccountID(req.From); err != nil {
		return Response{}, &SimulationError{Stage: StageResolve, Kind: req.Kind, Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}

	seq, err := p.ledger.AccountSequence(ctx, req.From)
	if err != nil {
		return Response{}, &SimulationError{Stage: StageResolve, Kind: req.Kind, Err: err}
	}
	next := seq + 1

	call, err := BuildCall(req, next)
	if err != nil {
		return Response{}, &SimulationError{Stage: StageSimulate, Kind: req.Kind, Err: err}
	}

	start := time.Now()
	envelope, err := p.ledger.SimulateCall(ctx, call)
	if err != nil {
		return Response{}, &SimulationError{Stage: StageSimulate, Kind: req.Kind, Err: err}
	}
	p.logger.Debug("simulated call",
		zap.String("method", call.Method),
		zap.String("contract", call.Contract),
		zap.Int64("sequence", next),
		zap.Duration("elapsed", time.Since(start)),
	)

	patched, err := Patch(envelope, p.padding)
	if err != nil {
		return Response{}, &SimulationError{Stage: StagePatch, Kind: req.Kind, Err: err}
	}
	return Response{Tx: patched}, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrSimulationFailed):
		return "simulation_failed"
	case errors.Is(err, ErrEnvelopeShape):
		return "envelope_shape"
	default:
		return "error"
	}
}
