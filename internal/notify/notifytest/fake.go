// Package notifytest provides a recording notify.Notifier fake.
package notifytest

import (
	"context"
	"sync"
)

// Call records one Notify invocation.
type Call struct {
	Title   string
	Message string
}

// FakeNotifier records every Notify call and returns Err, if set.
type FakeNotifier struct {
	mu    sync.Mutex
	Calls []Call
	Err   error
}

func (f *FakeNotifier) Notify(ctx context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Title: title, Message: message})
	return f.Err
}

// CallCount returns how many times Notify was called.
func (f *FakeNotifier) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Reset clears recorded calls.
func (f *FakeNotifier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}
