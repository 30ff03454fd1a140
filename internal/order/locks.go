package order

import "sync"

// keyedMutex serializes work per order id so no two concurrent transitions
// on the same order can both observe the pre-transition state. Entries are
// small and bounded by the distinct orders touched per process lifetime.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func (k *keyedMutex) lock(id int) *sync.Mutex {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m
}
