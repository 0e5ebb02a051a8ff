package reconcile

import (
	"sync"

	"pricewatch/models"
)

// keyLock serializes work per (retailer, product). Locks are created on
// first use and kept; the key space is bounded by catalog x retailers.
type keyLock struct {
	mu    sync.Mutex
	locks map[models.RecordKey]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[models.RecordKey]*sync.Mutex)}
}

// Lock blocks until key is free and returns its unlock func
func (k *keyLock) Lock(key models.RecordKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
