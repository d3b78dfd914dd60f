package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/sweeney/ups-guardian/internal/protocol"
	"github.com/sweeney/ups-guardian/internal/snapshot"
)

func TestLatest_NoneUntilFirstPublish(t *testing.T) {
	cell := snapshot.NewCell()
	if _, ok := cell.Latest(); ok {
		t.Fatal("Latest should report ok=false before any Publish")
	}
}

func TestLatest_NeverRevertsToNone(t *testing.T) {
	cell := snapshot.NewCell()
	cell.Publish(protocol.UpsStatus{WorkMode: protocol.Line})
	if _, ok := cell.Latest(); !ok {
		t.Fatal("Latest should report ok=true after Publish")
	}
}

func TestAwait_ReturnsImmediatelyIfAlreadyPublished(t *testing.T) {
	cell := snapshot.NewCell()
	cell.Publish(protocol.UpsStatus{WorkMode: protocol.Battery})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	status, err := cell.Await(ctx)
	if err != nil {
		t.Fatalf("Await error: %v", err)
	}
	if status.WorkMode != protocol.Battery {
		t.Errorf("WorkMode = %v, want Battery", status.WorkMode)
	}
}

func TestAwait_BlocksUntilPublish(t *testing.T) {
	cell := snapshot.NewCell()
	done := make(chan protocol.UpsStatus, 1)

	go func() {
		status, err := cell.Await(context.Background())
		if err != nil {
			t.Errorf("Await error: %v", err)
			return
		}
		done <- status
	}()

	time.Sleep(20 * time.Millisecond)
	cell.Publish(protocol.UpsStatus{WorkMode: protocol.Fault})

	select {
	case status := <-done:
		if status.WorkMode != protocol.Fault {
			t.Errorf("WorkMode = %v, want Fault", status.WorkMode)
		}
	case <-time.After(time.Second):
		t.Fatal("Await never returned after Publish")
	}
}

func TestAwait_RespectsCancellation(t *testing.T) {
	cell := snapshot.NewCell()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cell.Await(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestNext_CoalescesIntermediateUpdates(t *testing.T) {
	cell := snapshot.NewCell()
	gen := cell.Watch()

	cell.Publish(protocol.UpsStatus{OutputLoadLevel: 1})
	cell.Publish(protocol.UpsStatus{OutputLoadLevel: 2})
	cell.Publish(protocol.UpsStatus{OutputLoadLevel: 3})

	status, _, err := cell.Next(context.Background(), gen)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if status.OutputLoadLevel != 3 {
		t.Errorf("OutputLoadLevel = %d, want 3 (latest wins)", status.OutputLoadLevel)
	}
}
