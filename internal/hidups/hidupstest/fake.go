// Package hidupstest provides a scripted hidups.Ups fake for the poller and
// supervisor tests, in the teacher's Fake*/Reset()/call-counter style.
package hidupstest

import (
	"context"
	"sync"

	"github.com/sweeney/ups-guardian/internal/protocol"
)

// FakeUps returns a scripted sequence of Status results, one per call; the
// final entry repeats for any call beyond the scripted sequence, matching
// how a real device keeps answering the same way once it settles.
type FakeUps struct {
	mu sync.Mutex

	Statuses []StatusResult

	statusCalls int
	beeperCalls int
	BeeperErr   error
}

// StatusResult is one scripted Status() return value.
type StatusResult struct {
	Status protocol.UpsStatus
	Err    error
}

// NewFakeUps returns a FakeUps that yields results in order.
func NewFakeUps(results ...StatusResult) *FakeUps {
	return &FakeUps{Statuses: results}
}

func (f *FakeUps) Status(ctx context.Context) (protocol.UpsStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Statuses) == 0 {
		return protocol.UpsStatus{}, nil
	}
	idx := f.statusCalls
	if idx >= len(f.Statuses) {
		idx = len(f.Statuses) - 1
	}
	f.statusCalls++
	result := f.Statuses[idx]
	return result.Status, result.Err
}

func (f *FakeUps) BeeperToggle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beeperCalls++
	return f.BeeperErr
}

// StatusCalls returns how many times Status was called.
func (f *FakeUps) StatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

// BeeperCalls returns how many times BeeperToggle was called.
func (f *FakeUps) BeeperCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beeperCalls
}

// Reset clears call counters so a single FakeUps can be reused across
// subtests.
func (f *FakeUps) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = 0
	f.beeperCalls = 0
}
