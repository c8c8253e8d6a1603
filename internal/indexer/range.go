package indexer

import "fmt"

// LedgerRange represents an inclusive ledger range.
type LedgerRange struct {
	From uint32
	To   uint32
}

// SplitRange splits a ledger range into batches of size batchSize.
func SplitRange(from, to, batchSize uint32) ([]LedgerRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to ledger must be >= from ledger")
	}

	ranges := make([]LedgerRange, 0, (to-from)/batchSize+1)
	start := from
	for {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, LedgerRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ranges, nil
}
