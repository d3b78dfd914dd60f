package poller_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/ups-guardian/internal/hidups"
	"github.com/sweeney/ups-guardian/internal/hidups/hidupstest"
	"github.com/sweeney/ups-guardian/internal/poller"
	"github.com/sweeney/ups-guardian/internal/protocol"
	"github.com/sweeney/ups-guardian/internal/telemetry"
)

func factoryFor(ups hidups.Ups, openErr error, closeCalls *int) poller.UpsFactory {
	return func(ctx context.Context) (hidups.Ups, func() error, error) {
		if openErr != nil {
			return nil, nil, openErr
		}
		return ups, func() error {
			if closeCalls != nil {
				*closeCalls++
			}
			return nil
		}, nil
	}
}

func TestRun_PublishesSuccessfulPolls(t *testing.T) {
	fake := hidupstest.NewFakeUps(hidupstest.StatusResult{
		Status: protocol.UpsStatus{WorkMode: protocol.Line},
	})

	var closeCalls int
	p := poller.New(factoryFor(fake, nil, &closeCalls), poller.Config{
		PollInterval:       5 * time.Millisecond,
		PollFailureTimeout: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_ = p.Run(ctx)

	status, ok := p.Cell().Latest()
	if !ok {
		t.Fatal("expected a published snapshot")
	}
	if status.WorkMode != protocol.Line {
		t.Errorf("WorkMode = %v, want Line", status.WorkMode)
	}
	if fake.StatusCalls() < 2 {
		t.Errorf("StatusCalls = %d, want at least 2 in 30ms at 5ms interval", fake.StatusCalls())
	}
}

func TestRun_RecordsPollMetrics(t *testing.T) {
	fake := hidupstest.NewFakeUps(
		hidupstest.StatusResult{Status: protocol.UpsStatus{WorkMode: protocol.Line}},
		hidupstest.StatusResult{Err: errors.New("session lost")},
	)
	metrics := telemetry.NewMetrics()

	p := poller.New(factoryFor(fake, nil, nil), poller.Config{
		PollInterval:       2 * time.Millisecond,
		PollFailureTimeout: time.Hour,
		Metrics:            metrics,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	success := testutil.ToFloat64(metrics.PollsTotal.WithLabelValues(telemetry.PollResultSuccess))
	failure := testutil.ToFloat64(metrics.PollsTotal.WithLabelValues(telemetry.PollResultError))
	if success < 1 {
		t.Errorf("success polls recorded = %v, want at least 1", success)
	}
	if failure < 1 {
		t.Errorf("failed polls recorded = %v, want at least 1", failure)
	}
}

func TestRun_RestartsOuterLoopAfterInnerError(t *testing.T) {
	fake := hidupstest.NewFakeUps(
		hidupstest.StatusResult{Status: protocol.UpsStatus{WorkMode: protocol.Line}},
		hidupstest.StatusResult{Err: errors.New("session lost")},
	)

	var closeCalls int
	p := poller.New(factoryFor(fake, nil, &closeCalls), poller.Config{
		PollInterval:       2 * time.Millisecond,
		PollFailureTimeout: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	_ = p.Run(ctx)

	if closeCalls < 1 {
		t.Errorf("closeCalls = %d, want at least 1 after session loss", closeCalls)
	}
}

func TestRun_BacksOffOnOpenFailure(t *testing.T) {
	p := poller.New(factoryFor(nil, errors.New("no device"), nil), poller.Config{
		PollInterval:       5 * time.Millisecond,
		PollFailureTimeout: 200 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	if err == nil {
		t.Fatal("expected ctx deadline error")
	}
	if _, ok := p.Cell().Latest(); ok {
		t.Fatal("no snapshot should ever be published when the device never opens")
	}
}

func TestRun_StopsPromptlyOnCancellation(t *testing.T) {
	fake := hidupstest.NewFakeUps(hidupstest.StatusResult{
		Status: protocol.UpsStatus{WorkMode: protocol.Line},
	})
	p := poller.New(factoryFor(fake, nil, nil), poller.Config{
		PollInterval:       time.Hour,
		PollFailureTimeout: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop promptly after cancellation")
	}
}
