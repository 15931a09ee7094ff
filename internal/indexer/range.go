package indexer

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned by SplitRange for empty or inverted ranges.
var ErrInvalidRange = errors.New("invalid block range")

// BlockRange is an inclusive span of blocks fetched in one eth_getLogs call.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 { return r.To - r.From + 1 }

func (r BlockRange) String() string { return fmt.Sprintf("[%d,%d]", r.From, r.To) }

// SplitRange cuts [from, to] into consecutive ranges of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("%w: batch size must be greater than zero", ErrInvalidRange)
	}
	if to < from {
		return nil, fmt.Errorf("%w: to %d is before from %d", ErrInvalidRange, to, from)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
