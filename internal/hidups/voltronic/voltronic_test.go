package voltronic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sweeney/ups-guardian/internal/hidtransport/hidtransporttest"
	"github.com/sweeney/ups-guardian/internal/hidups"
	"github.com/sweeney/ups-guardian/internal/hidups/voltronic"
	"github.com/sweeney/ups-guardian/internal/protocol"
)

func TestStatus_ReProbesDialectEveryCall(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("V\r")},
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("(220.0 220.0 220.0 035 50.0 27.5 25.0 00001000\r")},
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("V\r")},
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("(220.0 220.0 220.0 035 50.0 27.5 25.0 00001000\r")},
	)
	ups := voltronic.New(hidups.NewSession(device))

	status, err := ups.Status(context.Background())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if status.OutputLoadLevel != 35 {
		t.Errorf("OutputLoadLevel = %d, want 35", status.OutputLoadLevel)
	}
	if status.WorkMode != protocol.Line {
		t.Errorf("WorkMode = %v, want Line", status.WorkMode)
	}

	if _, err := ups.Status(context.Background()); err != nil {
		t.Fatalf("second Status error: %v", err)
	}
	if calls := device.SendCalls(); calls != 4 {
		t.Errorf("SendCalls() = %d, want 4: each Status call sends M, then QS", calls)
	}
}

func TestStatus_UnsupportedDialectFails(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{ReplyID: hidups.ReportID, ReplyData: []byte("P\r")},
	)
	ups := voltronic.New(hidups.NewSession(device))

	_, err := ups.Status(context.Background())
	if err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
	var unsupported *protocol.ErrUnsupportedDialect
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want *protocol.ErrUnsupportedDialect", err)
	}
	if unsupported.Dialect != protocol.DialectP {
		t.Errorf("Dialect = %v, want DialectP", unsupported.Dialect)
	}
}

func TestStatus_ProbeTransactErrorPropagates(t *testing.T) {
	device := hidtransporttest.NewFakeDevice(
		hidtransporttest.Exchange{SendErr: errors.New("boom")},
	)
	ups := voltronic.New(hidups.NewSession(device))

	_, err := ups.Status(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBeeperToggle_Unsupported(t *testing.T) {
	device := hidtransporttest.NewFakeDevice()
	ups := voltronic.New(hidups.NewSession(device))

	if err := ups.BeeperToggle(context.Background()); err == nil {
		t.Fatal("expected error, voltronic dialect does not support beeper toggle")
	}
}
