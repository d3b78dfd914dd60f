// Package supervisor implements the power-loss state machine: S0 Normal,
// S1 Grace period, S2 Awaiting resume. It consumes UPS snapshots from a
// snapshot.Cell, a resume signal from a resumesignal.Signal, and drives a
// Notifier and a PowerController in response.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/ups-guardian/internal/protocol"
	"github.com/sweeney/ups-guardian/internal/resumesignal"
	"github.com/sweeney/ups-guardian/internal/snapshot"
	"github.com/sweeney/ups-guardian/internal/telemetry"
)

// Notifier broadcasts a textual warning to active local user sessions.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// PowerController carries out the shutdown or hibernate action once the
// grace period has expired or a low-battery snapshot demands it ahead of
// time.
type PowerController interface {
	InitiateShutdown(ctx context.Context, hibernate bool) error
}

// Config carries the per-deployment knobs the state machine needs. Metrics
// may be left nil, in which case state transitions simply aren't counted.
type Config struct {
	Hibernate          bool
	ShutdownTimeout    time.Duration
	ServiceDisplayName string
	Metrics            *telemetry.Metrics
}

// Supervisor runs the state machine described above.
type Supervisor struct {
	cell     *snapshot.Cell
	resume   *resumesignal.Signal
	notifier Notifier
	power    PowerController
	cfg      Config
}

// New builds a Supervisor over the given snapshot cell and resume signal.
func New(cell *snapshot.Cell, resume *resumesignal.Signal, notifier Notifier, power PowerController, cfg Config) *Supervisor {
	return &Supervisor{cell: cell, resume: resume, notifier: notifier, power: power, cfg: cfg}
}

func (s *Supervisor) setState(state float64) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.SupervisorState.Set(state)
}

func (s *Supervisor) recordShutdown(trigger string) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.ShutdownsTotal.WithLabelValues(trigger).Inc()
}

// Run blocks until ctx is cancelled or an unrecoverable error occurs. It
// never returns nil: it returns ctx.Err() on cancellation, or the error
// (such as a failed InitiateShutdown) that stopped it.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.setState(telemetry.StateNormal)
		if err := s.waitForPowerLoss(ctx); err != nil {
			return err
		}

		s.setState(telemetry.StateGracePeriod)
		recovered, err := s.gracePeriod(ctx)
		if err != nil {
			return err
		}
		if recovered {
			continue
		}

		// Shutdown or hibernation has been initiated. S2: wait for the host
		// to wake back up, or for line power to return before it even
		// suspends, whichever happens first.
		s.setState(telemetry.StateAwaitingResume)
		if err := s.awaitResumeOrRecovery(ctx); err != nil {
			return err
		}
	}
}

// waitForPowerLoss blocks until a snapshot reports a non-Line work mode —
// the S0 -> S1 edge.
func (s *Supervisor) waitForPowerLoss(ctx context.Context) error {
	return s.watchUntil(ctx, func(status protocol.UpsStatus) bool {
		switch status.WorkMode {
		case protocol.Battery, protocol.BatteryTest:
			log.Printf("power loss detected")
			return true
		case protocol.Fault:
			log.Printf("UPS fault detected")
			return true
		default:
			return false
		}
	})
}

// gracePeriod runs S1: notify active sessions, then race the grace timer
// against a low-battery snapshot and a power-restored snapshot. It reports
// recovered=true if power was restored before either the timer or a
// low-battery snapshot fired.
func (s *Supervisor) gracePeriod(ctx context.Context) (recovered bool, err error) {
	s.sendShutdownMessage(ctx)

	timer := time.NewTimer(s.cfg.ShutdownTimeout)
	defer timer.Stop()

	lowBattery := make(chan error, 1)
	recoveryDuringGrace := make(chan error, 1)

	watchCtx, cancelWatches := context.WithCancel(ctx)
	defer cancelWatches()

	go func() {
		lowBattery <- s.watchUntil(watchCtx, func(status protocol.UpsStatus) bool {
			return status.Flags.Has(protocol.BatteryLow)
		})
	}()
	go func() {
		recoveryDuringGrace <- s.watchUntil(watchCtx, func(status protocol.UpsStatus) bool {
			return status.WorkMode == protocol.Line
		})
	}()

	select {
	case <-timer.C:
		log.Printf("timer elapsed, initiating shutdown...")
		s.resume.Reset()
		s.recordShutdown(telemetry.TriggerTimeout)
		return false, s.power.InitiateShutdown(ctx, s.cfg.Hibernate)

	case err := <-lowBattery:
		if err != nil {
			return false, err
		}
		log.Printf("low battery detected, shutting down ahead of time...")
		s.resume.Reset()
		s.recordShutdown(telemetry.TriggerLowBattery)
		return false, s.power.InitiateShutdown(ctx, s.cfg.Hibernate)

	case err := <-recoveryDuringGrace:
		if err != nil {
			return false, err
		}
		log.Printf("power restored")
		return true, nil

	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// awaitResumeOrRecovery runs S2: wait for the resume signal (host woke up)
// or for a Line snapshot (power came back before the host ever actually
// suspended, e.g. a hibernate request that a UPS auto-cancelled).
func (s *Supervisor) awaitResumeOrRecovery(ctx context.Context) error {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	resumed := make(chan error, 1)
	recovered := make(chan error, 1)

	go func() { resumed <- s.resume.Await(watchCtx) }()
	go func() {
		recovered <- s.watchUntil(watchCtx, func(status protocol.UpsStatus) bool {
			return status.WorkMode == protocol.Line
		})
	}()

	select {
	case err := <-resumed:
		if err != nil {
			return err
		}
		log.Printf("system woke up")
		return nil
	case err := <-recovered:
		if err != nil {
			return err
		}
		log.Printf("power restored")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendShutdownMessage formats the grace-period warning and broadcasts it,
// logging but not failing the state machine if the notifier errors.
func (s *Supervisor) sendShutdownMessage(ctx context.Context) {
	action := "shut down"
	if s.cfg.Hibernate {
		action = "hibernate"
	}
	message := fmt.Sprintf(
		"Power loss detected.\n\nUnless power is restored within the next %s, the system will %s.",
		s.cfg.ShutdownTimeout, action,
	)

	log.Printf("system going down in %s", s.cfg.ShutdownTimeout)
	if err := s.notifier.Notify(ctx, s.cfg.ServiceDisplayName, message); err != nil {
		log.Printf("notifying active sessions failed: %v", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.NotifyFailuresTotal.Inc()
		}
	}
}

// watchUntil blocks until a snapshot published after this call began
// satisfies predicate, or ctx is cancelled. It deliberately ignores
// whatever snapshot is already latest when called — each call starts a
// fresh "generation" baseline, the same semantics a freshly cloned
// watch-channel receiver gets: callers must observe a new publish, not
// just a pre-existing value, before predicate is evaluated. This matters
// at every re-entry into a wait state (S2 -> S0 after a resume, S1's three
// concurrent waits at grace-period entry): stale state from a previous
// cycle must never immediately retrigger the next one. Intermediate
// snapshots that don't satisfy predicate are silently skipped, matching
// the "latest value wins" broadcast semantic.
func (s *Supervisor) watchUntil(ctx context.Context, predicate func(protocol.UpsStatus) bool) error {
	generation := s.cell.Watch()
	for {
		status, next, err := s.cell.Next(ctx, generation)
		if err != nil {
			return err
		}
		if predicate(status) {
			return nil
		}
		generation = next
	}
}
