// Package lock provides keyed locking for party mutations.
// Every Join/Leave/Begin/Disband on a party must hold that party's lock so
// two concurrent clicks cannot both pass a capacity or state check before
// either mutates the record.
package lock

import "sync"

// keyMutex wraps a mutex with a count of current holders and waiters.
type keyMutex struct {
	mu  sync.Mutex
	ref int
}

// KeyLock provides per-key locking. Keys are opaque strings (party ids).
// Party ids are one-shot interaction ids that never repeat, so entries are
// freed on the last release rather than accumulating forever.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
	pool  sync.Pool
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[string]*keyMutex),
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

// Lock acquires the lock for a key, blocking until it is available.
func (kl *KeyLock) Lock(key string) {
	kl.mu.Lock()
	lock, ok := kl.locks[key]
	if !ok {
		lock = kl.pool.Get().(*keyMutex)
		kl.locks[key] = lock
	}
	// Registered before blocking, so a concurrent Unlock cannot free the
	// entry out from under a waiter.
	lock.ref++
	kl.mu.Unlock()

	lock.mu.Lock()
}

// Unlock releases the lock for a key. The last holder or waiter to leave
// removes the entry and returns the mutex to the pool.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	lock, ok := kl.locks[key]
	if !ok {
		kl.mu.Unlock()
		return
	}
	lock.ref--
	last := lock.ref == 0
	if last {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	lock.mu.Unlock()
	if last {
		kl.pool.Put(lock)
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *KeyLock) TryLock(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	lock, ok := kl.locks[key]
	if !ok {
		// A fresh entry always acquires; no cleanup branch needed below.
		lock = kl.pool.Get().(*keyMutex)
		kl.locks[key] = lock
	}
	if !lock.mu.TryLock() {
		return false
	}
	lock.ref++
	return true
}

// size reports the number of live entries, for tests.
func (kl *KeyLock) size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
