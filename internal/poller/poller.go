// Package poller runs the outer/inner UPS polling loop described in the
// status-poller component: open a session, poll it on a fixed interval
// until it errors, then back off and reopen. Every successful poll is
// published to a snapshot.Cell that the supervisor watches.
package poller

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/ups-guardian/internal/hidtransport"
	"github.com/sweeney/ups-guardian/internal/hidups"
	"github.com/sweeney/ups-guardian/internal/snapshot"
	"github.com/sweeney/ups-guardian/internal/telemetry"
)

// UpsFactory opens a fresh HID device and wraps it as a hidups.Ups, so the
// poller can recreate a session after any device-level failure without
// knowing which dialect frontend is in play.
type UpsFactory func(ctx context.Context) (hidups.Ups, func() error, error)

// Poller owns the outer/inner loop and the snapshot.Cell it publishes to.
type Poller struct {
	newUps             UpsFactory
	cell               *snapshot.Cell
	pollInterval       time.Duration
	pollFailureTimeout time.Duration
	metrics            *telemetry.Metrics
}

// Config carries the two durations the spec names for the poller, plus the
// optional metrics sink. Metrics may be left nil, in which case polling
// activity simply isn't counted.
type Config struct {
	PollInterval       time.Duration
	PollFailureTimeout time.Duration
	Metrics            *telemetry.Metrics
}

// New builds a Poller. newUps is called once per outer-loop iteration to
// open (or re-open) the device.
func New(newUps UpsFactory, cfg Config) *Poller {
	return &Poller{
		newUps:             newUps,
		cell:               snapshot.NewCell(),
		pollInterval:       cfg.PollInterval,
		pollFailureTimeout: cfg.PollFailureTimeout,
		metrics:            cfg.Metrics,
	}
}

// Cell returns the snapshot broadcast the supervisor should watch.
func (p *Poller) Cell() *snapshot.Cell {
	return p.cell
}

// Run blocks until ctx is cancelled, alternating between the outer loop
// (open device, backoff on failure) and the inner loop (poll on interval,
// break out on any error).
func (p *Poller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ups, closeUps, err := p.newUps(ctx)
		if err != nil {
			log.Printf("opening UPS device failed: %v — retrying in %s", err, p.pollFailureTimeout)
			if !sleep(ctx, p.pollFailureTimeout) {
				return ctx.Err()
			}
			continue
		}

		err = p.innerLoop(ctx, ups)
		if closeErr := closeUps(); closeErr != nil {
			log.Printf("closing UPS device: %v", closeErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Printf("UPS query failed: %v — retrying in %s", err, p.pollFailureTimeout)
		if !sleep(ctx, p.pollFailureTimeout) {
			return ctx.Err()
		}
	}
}

// innerLoop polls on interval until a Status call errors or ctx is done.
func (p *Poller) innerLoop(ctx context.Context, ups hidups.Ups) error {
	for {
		status, err := ups.Status(ctx)
		if err != nil {
			p.recordPoll(telemetry.PollResultError)
			return err
		}
		p.recordPoll(telemetry.PollResultSuccess)
		p.cell.Publish(status)

		if !sleep(ctx, p.pollInterval) {
			return ctx.Err()
		}
	}
}

func (p *Poller) recordPoll(result string) {
	if p.metrics == nil {
		return
	}
	p.metrics.PollsTotal.WithLabelValues(result).Inc()
}

// sleep waits for d or ctx cancellation, reporting whether it completed the
// full duration.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// OpenDialect is the default UpsFactory wiring: it opens the identity via
// opener, wraps the device with the dialect frontend the caller selected
// ahead of time, and returns a hidups.Ups plus a matching Close.
func OpenDialect(opener hidtransport.Opener, identity hidtransport.Identity, wrap func(hidtransport.Device) hidups.Ups) UpsFactory {
	return func(ctx context.Context) (hidups.Ups, func() error, error) {
		device, err := opener.Open(ctx, identity)
		if err != nil {
			return nil, nil, err
		}
		return wrap(device), device.Close, nil
	}
}
