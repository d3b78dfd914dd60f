// Package megatec implements hidups.Ups for the Megatec dialect, which
// encodes both the status line and the beeper toggle as indexed HID string
// descriptors rather than feature-report command/response exchanges: index
// 3 returns the status line, index 7 toggles the beeper as a side effect of
// being read.
package megatec

import (
	"context"
	"fmt"

	"github.com/sweeney/ups-guardian/internal/hidtransport"
	"github.com/sweeney/ups-guardian/internal/protocol"
)

const (
	statusStringIndex = 3
	beeperStringIndex = 7
)

// Ups queries a Megatec-dialect device directly over its hidtransport.Device,
// bypassing the framed-report session layer entirely.
type Ups struct {
	device hidtransport.Device
}

// New wraps an open device.
func New(device hidtransport.Device) *Ups {
	return &Ups{device: device}
}

// Status reads the status string descriptor and parses it as a standard
// status line.
func (u *Ups) Status(ctx context.Context) (protocol.UpsStatus, error) {
	line, err := u.device.GetIndexedString(ctx, statusStringIndex)
	if err != nil {
		return protocol.UpsStatus{}, fmt.Errorf("megatec: reading status string: %w", err)
	}
	status, err := protocol.ParseStatus(line)
	if err != nil {
		return protocol.UpsStatus{}, fmt.Errorf("megatec: parsing status: %w", err)
	}
	return status, nil
}

// BeeperToggle reads the beeper string descriptor; the device toggles its
// beeper state as a side effect of the read and the returned string carries
// no information callers need.
func (u *Ups) BeeperToggle(ctx context.Context) error {
	if _, err := u.device.GetIndexedString(ctx, beeperStringIndex); err != nil {
		return fmt.Errorf("megatec: toggling beeper: %w", err)
	}
	return nil
}
