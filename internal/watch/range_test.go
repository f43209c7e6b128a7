package watch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatches(t *testing.T) {
	cases := []struct {
		name     string
		from, to uint64
		size     uint64
		want     []BlockRange
	}{
		{"catch up in two queries", 10, 18, 5, []BlockRange{{10, 14}, {15, 18}}},
		{"span smaller than batch", 45, 47, 2000, []BlockRange{{45, 47}}},
		{"exact multiple", 41, 50, 5, []BlockRange{{41, 45}, {46, 50}}},
		{"single block", 12, 12, 1, []BlockRange{{12, 12}}},
		{"genesis", 0, 2, 2, []BlockRange{{0, 1}, {2, 2}}},
		{"top of range", math.MaxUint64 - 2, math.MaxUint64, 2, []BlockRange{{math.MaxUint64 - 2, math.MaxUint64 - 1}, {math.MaxUint64, math.MaxUint64}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := batches(tc.from, tc.to, tc.size)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBatchesRejectsBadInput(t *testing.T) {
	_, err := batches(19, 18, 5)
	require.ErrorContains(t, err, "empty block span 19..18")

	_, err = batches(10, 18, 0)
	require.Error(t, err)
}

func TestBlockRangeString(t *testing.T) {
	require.Equal(t, "45..47", BlockRange{From: 45, To: 47}.String())
}
