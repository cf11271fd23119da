package classifier

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// counterShard holds one CPU's contribution to every counter slot.
// Padding keeps adjacent shards off the same cache line under
// concurrent increment from different goroutines.
type counterShard struct {
	packets []atomic.Uint64
	bytes   []atomic.Uint64
	_       [64]byte
}

// ShardedCounters is the per-CPU counter array backing every entry's
// packet/byte counters while a Program is live. Packet evaluators
// increment their own shard lock-free; a snapshot sums every shard
// under a short write lock (§5).
type ShardedCounters struct {
	mu     sync.Mutex
	shards []*counterShard
	n      int
}

// NewShardedCounters allocates a counter array of n slots, one shard
// per available CPU.
func NewShardedCounters(n int) *ShardedCounters {
	shardCount := runtime.GOMAXPROCS(0)
	if shardCount < 1 {
		shardCount = 1
	}
	sc := &ShardedCounters{n: n}
	for i := 0; i < shardCount; i++ {
		sc.shards = append(sc.shards, &counterShard{
			packets: make([]atomic.Uint64, n),
			bytes:   make([]atomic.Uint64, n),
		})
	}
	return sc
}

// Add increments slot's packet count by one and byte count by length,
// using the shard selected by shardHint (typically a goroutine-local
// or CPU id; callers that don't track one can hash anything stable).
func (sc *ShardedCounters) Add(shardHint, slot int, length int) {
	if slot < 0 || slot >= sc.n {
		return
	}
	s := sc.shards[shardHint%len(sc.shards)]
	s.packets[slot].Add(1)
	s.bytes[slot].Add(uint64(length))
}

// Snapshot sums every shard into a contiguous array, the admin-side
// atomic read (§5). Held under the same lock a resize would need, so
// concurrent snapshots serialize but never race a shard's in-flight
// Add.
func (sc *ShardedCounters) Snapshot() []Counter {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := make([]Counter, sc.n)
	for _, s := range sc.shards {
		for i := 0; i < sc.n; i++ {
			out[i].Packets += s.packets[i].Load()
			out[i].Bytes += s.bytes[i].Load()
		}
	}
	return out
}

// Counter is one slot's summed packet/byte count.
type Counter struct {
	Packets, Bytes uint64
}

// Resize grows or shrinks the counter array to n slots, discarding
// any counts beyond a shrink and zero-filling a grow. Called whenever
// a new Program with a different entry count is installed.
func (sc *ShardedCounters) Resize(n int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, s := range sc.shards {
		packets := make([]atomic.Uint64, n)
		bytes := make([]atomic.Uint64, n)
		for i := 0; i < n && i < len(s.packets); i++ {
			packets[i].Store(s.packets[i].Load())
			bytes[i].Store(s.bytes[i].Load())
		}
		s.packets = packets
		s.bytes = bytes
	}
	sc.n = n
}
