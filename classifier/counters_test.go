package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardedCountersAddAndSnapshot(t *testing.T) {
	sc := NewShardedCounters(3)
	sc.Add(0, 1, 64)
	sc.Add(1, 1, 128)
	sc.Add(0, 2, 10)

	snap := sc.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, uint64(2), snap[1].Packets)
	require.Equal(t, uint64(192), snap[1].Bytes)
	require.Equal(t, uint64(1), snap[2].Packets)
	require.Equal(t, uint64(0), snap[0].Packets)
}

func TestShardedCountersResizePreservesPrefix(t *testing.T) {
	sc := NewShardedCounters(2)
	sc.Add(0, 0, 1)
	sc.Add(0, 1, 2)

	sc.Resize(4)
	snap := sc.Snapshot()
	require.Len(t, snap, 4)
	require.Equal(t, uint64(1), snap[0].Packets)
	require.Equal(t, uint64(1), snap[1].Packets)
	require.Equal(t, uint64(0), snap[2].Packets)
}

func TestShardedCountersOutOfRangeIgnored(t *testing.T) {
	sc := NewShardedCounters(1)
	sc.Add(0, 5, 10)
	snap := sc.Snapshot()
	require.Equal(t, uint64(0), snap[0].Packets)
}
