// Package locks provides keyed mutual exclusion: one independent lock per
// string key (asset ID, investor ID). Operations on different keys never
// contend, which lets cross-asset and cross-investor work proceed in
// parallel while same-key mutations serialize.
package locks

import (
	"sync"
	"time"
)

// Keyed hands out one lock slot per key. A slot is a buffered channel of
// capacity one; holding the token means holding the lock.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewKeyed creates an empty keyed lock set.
func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]chan struct{})}
}

func (k *Keyed) slot(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		k.slots[key] = s
	}
	return s
}

// Acquire blocks until the lock for key is held and returns a release func.
func (k *Keyed) Acquire(key string) func() {
	s := k.slot(key)
	s <- struct{}{}
	return func() { <-s }
}

// AcquireTimeout attempts to take the lock for key within d. It returns a
// release func and true on success, or nil and false when the deadline
// passes with the lock still held elsewhere.
func (k *Keyed) AcquireTimeout(key string, d time.Duration) (func(), bool) {
	s := k.slot(key)
	select {
	case s <- struct{}{}:
		return func() { <-s }, true
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case s <- struct{}{}:
		return func() { <-s }, true
	case <-timer.C:
		return nil, false
	}
}
