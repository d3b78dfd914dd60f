// Package resumesignal implements the one-bit, manually-resettable resume
// signal the supervisor awaits for PBT_APMRESUMEAUTOMATIC-equivalent
// wake-from-sleep notification. It is the Go analogue of the original
// Windows manual-reset Event/RegisterWaitForSingleObject primitive: Set marks
// the signal raised, Reset clears it, and Await blocks until the signal is
// raised or the caller's context is cancelled. Unlike the Windows Event, which
// needed an explicit wait-handle unregister on drop to avoid leaking kernel
// callback state, a cancelled Await here only needs to remove itself from
// the waiter set so an abandoned caller doesn't hold a channel reference
// forever.
package resumesignal

import (
	"context"
	"sync"
)

// Signal is a manually-resettable, level-triggered gate. The zero value is
// an unsignaled Signal ready to use.
type Signal struct {
	mu       sync.Mutex
	signaled bool
	waiters  map[chan struct{}]struct{}
}

// New returns an unsignaled Signal.
func New() *Signal {
	return &Signal{waiters: make(map[chan struct{}]struct{})}
}

// Set raises the signal and wakes every current waiter. Subsequent Await
// calls return immediately until Reset is called.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signaled = true
	for w := range s.waiters {
		close(w)
		delete(s.waiters, w)
	}
}

// Reset lowers the signal.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signaled = false
}

// Await blocks until the signal is raised or ctx is cancelled. It does not
// itself reset the signal — callers that need edge-triggered behavior call
// Reset before re-arming, per the state machine's reset-before-initiate
// ordering.
func (s *Signal) Await(ctx context.Context) error {
	s.mu.Lock()
	if s.waiters == nil {
		s.waiters = make(map[chan struct{}]struct{})
	}
	if s.signaled {
		s.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	s.waiters[wait] = struct{}{}
	s.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, wait)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// WaiterCount reports the number of goroutines currently parked in Await.
// Exposed for leak tests that mirror the original Event primitive's
// drop-counter test.
func (s *Signal) WaiterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
