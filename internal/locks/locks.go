// Package locks provides per-key mutual exclusion with bounded waits.
// The jobs service serializes all mutations of a job (and its applications)
// on the job's key; the ledger serializes wallet mutations on the wallet
// owner's key. Callers that cannot acquire a key within their context
// deadline get ErrBusy, which is the only retryable error in the system.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when a lock cannot be acquired before the context
// deadline. Callers may retry with backoff.
var ErrBusy = errors.New("resource busy")

// KeyedMutex is a set of mutexes addressed by UUID. Entries are reference
// counted and removed once the last holder or waiter releases. maxWait bounds
// every acquisition; a zero maxWait means the caller's context is the only
// bound.
type KeyedMutex struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]*entry
	maxWait time.Duration
}

type entry struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

func NewKeyedMutex(maxWait time.Duration) *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*entry), maxWait: maxWait}
}

// Acquire blocks until the key's lock is held, the wait bound elapses, or ctx
// is done. On expiry it returns ErrBusy.
func (k *KeyedMutex) Acquire(ctx context.Context, key uuid.UUID) error {
	if k.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.maxWait)
		defer cancel()
	}

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.put(key, e)
		return ErrBusy
	}
}

// Release unlocks the key. It must only be called after a successful Acquire.
func (k *KeyedMutex) Release(key uuid.UUID) {
	k.mu.Lock()
	e, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		panic("locks: release of unheld key " + key.String())
	}
	<-e.ch
	k.put(key, e)
}

// AcquireAll acquires every key in ascending UUID order so that two
// operations touching overlapping key sets cannot deadlock. On failure it
// releases any keys already held.
func (k *KeyedMutex) AcquireAll(ctx context.Context, keys ...uuid.UUID) error {
	ordered := make([]uuid.UUID, len(keys))
	copy(ordered, keys)
	sortUUIDs(ordered)

	for i, key := range ordered {
		if err := k.Acquire(ctx, key); err != nil {
			for _, held := range ordered[:i] {
				k.Release(held)
			}
			return err
		}
	}
	return nil
}

// ReleaseAll releases every key acquired by AcquireAll.
func (k *KeyedMutex) ReleaseAll(keys ...uuid.UUID) {
	for _, key := range keys {
		k.Release(key)
	}
}

func (k *KeyedMutex) put(key uuid.UUID, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// sortUUIDs orders keys by their string form (insertion sort; key sets here
// are two or three wallets).
func sortUUIDs(keys []uuid.UUID) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j].String() < keys[j-1].String(); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}
