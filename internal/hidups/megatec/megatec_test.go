package megatec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sweeney/ups-guardian/internal/hidtransport/hidtransporttest"
	"github.com/sweeney/ups-guardian/internal/hidups/megatec"
)

func TestStatus_ReadsIndexedStringThree(t *testing.T) {
	device := hidtransporttest.NewFakeDevice()
	device.IndexedStrings[3] = "(220.0 220.0 220.0 035 50.0 27.5 25.0 00001000\r"
	ups := megatec.New(device)

	status, err := ups.Status(context.Background())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if status.OutputLoadLevel != 35 {
		t.Errorf("OutputLoadLevel = %d, want 35", status.OutputLoadLevel)
	}
}

func TestStatus_IndexedStringErrorPropagates(t *testing.T) {
	device := hidtransporttest.NewFakeDevice()
	device.IndexedErr = errors.New("boom")
	ups := megatec.New(device)

	if _, err := ups.Status(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestBeeperToggle_ReadsIndexedStringSeven(t *testing.T) {
	device := hidtransporttest.NewFakeDevice()
	device.IndexedStrings[7] = "OK"
	ups := megatec.New(device)

	if err := ups.BeeperToggle(context.Background()); err != nil {
		t.Fatalf("BeeperToggle error: %v", err)
	}
}
