// Package httputil holds transport-level helpers for the analyze API.
package httputil

import (
	"context"
	"sync/atomic"
)

// Semaphore caps concurrent scoring requests. Explanation backends make many
// classifier calls per request, so an unbounded request fan-out multiplies
// quickly.
type Semaphore struct {
	sem      chan struct{}
	rejected atomic.Int64
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 64
	}
	return &Semaphore{
		sem: make(chan struct{}, capacity),
	}
}

// TryAcquire attempts to take a slot without blocking. Returns false at
// capacity, in which case the request should be rejected with 503.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		s.rejected.Add(1)
		return false
	}
}

// Acquire blocks until a slot is available or the context is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Must follow a successful TryAcquire or Acquire.
func (s *Semaphore) Release() {
	select {
	case <-s.sem:
	default:
	}
}

// RejectedCount returns how many requests were turned away at capacity.
func (s *Semaphore) RejectedCount() int64 {
	return s.rejected.Load()
}

// InUse returns the number of slots currently held.
func (s *Semaphore) InUse() int {
	return len(s.sem)
}

// Stats returns a snapshot for the health endpoint.
func (s *Semaphore) Stats() SemaphoreStats {
	return SemaphoreStats{
		Capacity: cap(s.sem),
		InUse:    len(s.sem),
		Rejected: s.rejected.Load(),
	}
}

// SemaphoreStats is the health endpoint's view of request backpressure.
type SemaphoreStats struct {
	Capacity int   `json:"capacity"`
	InUse    int   `json:"in_use"`
	Rejected int64 `json:"rejected"`
}
