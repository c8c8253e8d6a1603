package txsim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned for requests that cannot be dispatched.
	ErrInvalidRequest = errors.New("invalid simulation request")
	// ErrAccountNotFound is returned when the signer has no account on ledger.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSimulationFailed is returned when the ledger backend rejects the call.
	ErrSimulationFailed = errors.New("simulation failed")
	// ErrEnvelopeShape is returned when the simulated transaction is not a
	// single-operation v1 envelope carrying soroban resources.
	ErrEnvelopeShape = errors.New("unexpected envelope shape")
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageSimulate Stage = "simulate"
	StagePatch    Stage = "patch"
)

// SimulationError carries the failing stage and action of a request.
type SimulationError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}
