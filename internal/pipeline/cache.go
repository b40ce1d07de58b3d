package pipeline

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrNotReady is returned by cache reads before the pipeline has produced
	// a first value.
	ErrNotReady = errors.New("pipeline: no value produced yet")

	// ErrTimeout is returned by cache reads when the slot stayed contended
	// past the bounded wait. Distinct from ErrNotReady: the value exists, the
	// reader just lost the race.
	ErrTimeout = errors.New("pipeline: cache busy")
)

// latestCache is a single-slot cache of the most recent value, guarded by a
// channel semaphore so acquisition can be attempted without blocking (writer
// side) or with a bounded wait (reader side). The hold time is one value copy.
type latestCache[T any] struct {
	sem   chan struct{}
	has   atomic.Bool
	value T
}

func newLatestCache[T any]() *latestCache[T] {
	return &latestCache[T]{sem: make(chan struct{}, 1)}
}

// tryStore overwrites the slot if it can be acquired immediately. On
// contention the update is skipped silently; the producer never waits and
// never allocates. Returns whether the value was stored.
func (c *latestCache[T]) tryStore(v T) bool {
	select {
	case c.sem <- struct{}{}:
	default:
		return false
	}

	c.value = v
	c.has.Store(true)
	<-c.sem
	return true
}

// load copies the slot out, waiting up to the given duration for the lock.
// Before any value has ever been stored it reports ErrNotReady; if the slot
// stays contended past the wait it reports ErrTimeout.
func (c *latestCache[T]) load(wait time.Duration) (T, error) {
	var zero T

	if !c.has.Load() {
		return zero, ErrNotReady
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case c.sem <- struct{}{}:
	case <-timer.C:
		return zero, ErrTimeout
	}

	v := c.value
	<-c.sem
	return v, nil
}
