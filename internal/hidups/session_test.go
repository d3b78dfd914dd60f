package hidups_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/ups-guardian/internal/hidtransport/hidtransporttest"
	"github.com/sweeney/ups-guardian/internal/hidups"
)

func TestTransact_SinglePacketResponse(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{
			ReplyID:   hidups.ReportID,
			ReplyData: []byte("P\r"),
		},
	)
	session := hidups.NewSession(device)

	response, err := session.Transact(context.Background(), "M")
	if err != nil {
		t.Fatalf("Transact error: %v", err)
	}
	if response != "P" {
		t.Errorf("response = %q, want %q", response, "P")
	}
}

func TestTransact_MultiPacketResponseIsReassembled(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("(220.0 220")},
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte(".0 220.0 035 50.0 27.5 25.0 00001000\r")},
	)
	session := hidups.NewSession(device)

	// Two ReadInputReport calls consume exchange indices 0 and 1, but
	// SendOutputReport only ever consumes index 0; give it a no-op
	// SendErr-free first exchange.
	response, err := session.Transact(context.Background(), "QS")
	if err != nil {
		t.Fatalf("Transact error: %v", err)
	}
	want := "(220.0 220.0 220.0 035 50.0 27.5 25.0 00001000"
	if response != want {
		t.Errorf("response = %q, want %q", response, want)
	}
}

func TestTransact_UnexpectedReportIDFails(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: 9, ReplyData: []byte("P\r")},
	)
	session := hidups.NewSession(device)

	_, err := session.Transact(context.Background(), "M")
	if !errors.Is(err, hidups.ErrUnexpectedReportID) {
		t.Fatalf("err = %v, want ErrUnexpectedReportID", err)
	}
}

func TestTransact_SendErrorPropagates(t *testing.T) {
	sendErr := errors.New("boom")
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{SendErr: sendErr},
	)
	session := hidups.NewSession(device)

	_, err := session.Transact(context.Background(), "M")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTransact_ReadErrorPropagates(t *testing.T) {
	readErr := errors.New("boom")
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyErr: readErr},
	)
	session := hidups.NewSession(device)

	_, err := session.Transact(context.Background(), "M")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTransact_RespectsCallerCancellation(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("P\r")},
	)
	session := hidups.NewSession(device)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := session.Transact(ctx, "M")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Transact took %v after cancellation, want near-immediate", elapsed)
	}
}

func TestTransact_CommandTooLongRejectedBeforeIO(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("P\r")},
	)
	device.OutputSize = 4
	session := hidups.NewSession(device)

	_, err := session.Transact(context.Background(), "TOOLONGCOMMAND")
	if !errors.Is(err, hidups.ErrCommandTooLong) {
		t.Fatalf("err = %v, want ErrCommandTooLong", err)
	}
	if calls := device.SendCalls(); calls != 0 {
		t.Errorf("SendCalls() = %d, want 0: oversized command must be rejected before any I/O", calls)
	}
}

func TestTransact_ResponseNotUTF8Fails(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte{0x80, 0x80, '\r'}},
	)
	session := hidups.NewSession(device)

	_, err := session.Transact(context.Background(), "M")
	if !errors.Is(err, hidups.ErrResponseNotUTF8) {
		t.Fatalf("err = %v, want ErrResponseNotUTF8", err)
	}
}

func TestTransact_SerializesConcurrentCallers(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("A\r")},
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("B\r")},
	)
	session := hidups.NewSession(device)

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			response, err := session.Transact(context.Background(), "M")
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- response
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[<-results] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected both A and B responses, got %v", seen)
	}
}
