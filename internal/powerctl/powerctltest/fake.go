// Package powerctltest provides a recording powerctl.Controller fake.
package powerctltest

import (
	"context"
	"sync"
)

// Call records one InitiateShutdown invocation.
type Call struct {
	Hibernate bool
}

// FakeController records every InitiateShutdown call and returns Err, if
// set.
type FakeController struct {
	mu    sync.Mutex
	Calls []Call
	Err   error
}

func (f *FakeController) InitiateShutdown(ctx context.Context, hibernate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Hibernate: hibernate})
	return f.Err
}

// CallCount returns how many times InitiateShutdown was called.
func (f *FakeController) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Reset clears recorded calls.
func (f *FakeController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}
