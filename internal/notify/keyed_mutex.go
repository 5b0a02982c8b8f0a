package notify

import (
	"hash/fnv"
	"sync"
)

const mutexShards = 64

// keyedMutex provides per-key exclusion without a lock per key or a single
// global lock: keys hash onto a fixed set of shards.
type keyedMutex struct {
	shards [mutexShards]sync.Mutex
}

// lock acquires the shard owning key and returns its unlock function.
func (m *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	shard := &m.shards[h.Sum32()%mutexShards]
	shard.Lock()
	return shard.Unlock
}
