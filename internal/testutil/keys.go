package testutil

import (
	"strconv"
	"sync"
)

// SequentialKeys generates binding keys "<prefix>-1", "<prefix>-2", ...
//
// It satisfies command.KeyGenerator and sim.NameGenerator, so persisted
// keys and run names are stable across runs and golden snapshots do not
// churn.
//
// Thread-safety: SequentialKeys is safe for concurrent use via internal mutex.
type SequentialKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeys creates a generator. An empty prefix means "key".
func NewSequentialKeys(prefix string) *SequentialKeys {
	if prefix == "" {
		prefix = "key"
	}
	return &SequentialKeys{prefix: prefix}
}

// Generate returns the next key.
func (k *SequentialKeys) Generate() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.n++
	return k.prefix + "-" + strconv.Itoa(k.n)
}
