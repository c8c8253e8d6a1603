package aggregate

import "fmt"

// Stage names the step at which a pool failed to aggregate.
type Stage string

const (
	StageInstance Stage = "instance"
	StageConfig   Stage = "config"
	StagePeriod   Stage = "period"
	StageStorage  Stage = "storage"
	StageCounters Stage = "counters"
)

// PoolError reports why a single pool was left out of a listing.
type PoolError struct {
	Address string
	Stage   Stage
	Err     error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool %s: %s: %v", e.Address, e.Stage, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}
