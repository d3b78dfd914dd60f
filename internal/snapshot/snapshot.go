// Package snapshot implements the single-producer, multi-consumer "latest
// value" broadcast used to hand UPS status snapshots from the poller to the
// supervisor. It is a mutex-guarded cell paired with a close-and-replace
// channel, the idiomatic Go analogue of a condition variable: waiters block
// on the channel, the writer closes it to wake everyone, then installs a
// fresh channel for the next generation. It is deliberately not a queue —
// readers only ever see the most recent value, and an arbitrary number of
// intermediate updates may be coalesced away between two reads.
package snapshot

import (
	"context"
	"sync"

	"github.com/sweeney/ups-guardian/internal/protocol"
)

// Cell holds the latest published UpsStatus. The zero value has no snapshot
// yet; Latest returns ok=false until the first Publish.
type Cell struct {
	mu      sync.Mutex
	value   protocol.UpsStatus
	has     bool
	waiters chan struct{}
}

// NewCell returns a ready-to-use Cell with no value published yet.
func NewCell() *Cell {
	return &Cell{waiters: make(chan struct{})}
}

// Publish installs status as the latest snapshot and wakes every goroutine
// blocked in Await. Once has becomes true it never reverts to false.
func (c *Cell) Publish(status protocol.UpsStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = status
	c.has = true
	close(c.waiters)
	c.waiters = make(chan struct{})
}

// Latest returns the most recently published snapshot, or ok=false if
// Publish has never been called.
func (c *Cell) Latest() (protocol.UpsStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.has
}

// Await returns the latest snapshot at once if one has been published;
// otherwise it blocks until the first Publish or until ctx is cancelled. It
// does not wait for a newer snapshot than one already present; use Next for
// that.
func (c *Cell) Await(ctx context.Context) (protocol.UpsStatus, error) {
	c.mu.Lock()
	if c.has {
		value := c.value
		c.mu.Unlock()
		return value, nil
	}
	wait := c.waiters
	c.mu.Unlock()

	select {
	case <-wait:
		value, _ := c.Latest()
		return value, nil
	case <-ctx.Done():
		return protocol.UpsStatus{}, ctx.Err()
	}
}

// Next blocks until the next Publish after the generation channel handed
// back by a previous call to Next or Watch, so callers that must observe
// every edge (not just "there is a current value") can wait specifically
// for a change rather than an existing value.
func (c *Cell) Next(ctx context.Context, generation <-chan struct{}) (protocol.UpsStatus, <-chan struct{}, error) {
	if generation == nil {
		c.mu.Lock()
		generation = c.waiters
		c.mu.Unlock()
	}
	select {
	case <-generation:
		c.mu.Lock()
		value, next := c.value, c.waiters
		c.mu.Unlock()
		return value, next, nil
	case <-ctx.Done():
		return protocol.UpsStatus{}, generation, ctx.Err()
	}
}

// Watch returns the current generation channel, to be passed to Next.
func (c *Cell) Watch() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters
}
