package service

import (
	"context"
	"sync"
	"time"
)

// LockRegistry serializes transition operations per request. Each request is
// its own unit of mutual exclusion; operations on different requests proceed
// in parallel. Acquisition is bounded: a caller that cannot get the lock
// within the timeout is told to retry instead of queueing indefinitely.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*requestLock
}

type requestLock struct {
	sem  chan struct{}
	refs int
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*requestLock)}
}

// Acquire takes the per-request lock, waiting at most timeout. On success it
// returns a release func; on timeout or context cancellation it returns false.
func (r *LockRegistry) Acquire(ctx context.Context, requestID string, timeout time.Duration) (func(), bool) {
	r.mu.Lock()
	lock, ok := r.locks[requestID]
	if !ok {
		lock = &requestLock{sem: make(chan struct{}, 1)}
		r.locks[requestID] = lock
	}
	lock.refs++
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			r.put(requestID, lock)
		}, true
	case <-timer.C:
	case <-ctx.Done():
	}
	r.put(requestID, lock)
	return nil, false
}

// put drops one reference and garbage-collects idle entries so the registry
// does not grow with the total number of requests ever seen.
func (r *LockRegistry) put(requestID string, lock *requestLock) {
	r.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, requestID)
	}
	r.mu.Unlock()
}
