package watch

import (
	"errors"
	"fmt"
)

// BlockRange is an inclusive span of blocks read with one log query.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) String() string {
	return fmt.Sprintf("%d..%d", r.From, r.To)
}

// batches cuts the confirmed span from..to into consecutive log queries of at
// most size blocks. Only the last batch may be shorter.
func batches(from, to, size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, errors.New("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("empty block span %d..%d", from, to)
	}

	out := make([]BlockRange, 0, (to-from)/size+1)
	for start := from; ; start += size {
		if to-start < size {
			return append(out, BlockRange{From: start, To: to}), nil
		}
		out = append(out, BlockRange{From: start, To: start + size - 1})
	}
}
