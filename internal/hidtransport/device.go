// Package hidtransport defines the capability boundary for frame-sized HID
// report I/O. The concrete adapter lives in hidtransport/gousb; the core
// protocol/session packages depend only on the Device and Opener interfaces
// here, so tests substitute hidtransporttest fakes without touching libusb.
package hidtransport

import (
	"context"
	"fmt"
)

// Identity selects a HID device by USB vendor/product ID and, optionally,
// HID usage page/usage ID when the caller wants to disambiguate a device
// that exposes more than one HID interface.
type Identity struct {
	VendorID  uint16
	ProductID uint16
	UsagePage *uint16
	UsageID   *uint16
}

func (id Identity) String() string {
	s := fmt.Sprintf("vid=%#04x pid=%#04x", id.VendorID, id.ProductID)
	if id.UsagePage != nil && id.UsageID != nil {
		s += fmt.Sprintf(" usage=%#04x/%#04x", *id.UsagePage, *id.UsageID)
	}
	return s
}

// Device is one open, exclusively-held HID device. Every method may block
// on real I/O; callers are expected to bound that with ctx.
type Device interface {
	// SendOutputReport issues a single HID output report. payload may be
	// shorter than OutputReportSize()-1 bytes; the implementation zero-pads
	// the wire frame to OutputReportSize() bytes, with reportID in the first
	// byte.
	SendOutputReport(ctx context.Context, reportID byte, payload []byte) error

	// ReadInputReport blocks for the next HID input report.
	ReadInputReport(ctx context.Context) (reportID byte, payload []byte, err error)

	// GetIndexedString reads a numbered HID string descriptor (used by the
	// Megatec dialect, which encodes status/commands as string indices
	// rather than feature reports).
	GetIndexedString(ctx context.Context, index int) (string, error)

	// OutputReportSize is the device's declared output-report byte length,
	// including the leading report-ID byte.
	OutputReportSize() int

	Close() error
}

// Opener opens a HID device by identity, returning the single best match or
// an error. Real devices are opened exclusively for read+write.
type Opener interface {
	Open(ctx context.Context, identity Identity) (Device, error)
}

// ErrNoMatchingDevice is returned by an Opener when no device matches the
// requested identity.
var ErrNoMatchingDevice = fmt.Errorf("hidtransport: no matching HID device found")
