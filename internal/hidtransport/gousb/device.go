// Package gousb adapts github.com/google/gousb (a libusb binding) to the
// hidtransport.Device/Opener capability, the same vendor/product-ID
// USB-opening pattern used in guiperry-HASHER's ASIC device controller,
// applied here to a HID-class device instead of a bulk-transfer one.
package gousb

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/sweeney/ups-guardian/internal/hidtransport"
)

const (
	// hidInterruptOutEndpoint and hidInterruptInEndpoint are the endpoint
	// numbers Voltronic/Megatec-family UPS HID devices conventionally
	// expose for feature-report-style command/response exchange.
	hidInterruptOutEndpoint = 1
	hidInterruptInEndpoint  = 1

	// defaultOutputReportSize is the output-report size used for every
	// opened device. Open does not read the HID report descriptor, so a
	// device that declares a different size still gets this one.
	defaultOutputReportSize = 8
)

// Opener opens HID devices over libusb via gousb. Create one with
// NewOpener; the zero value has no libusb context and cannot open devices.
// Close releases the underlying libusb context and must be called once the
// opener is no longer needed.
type Opener struct {
	ctx *gousb.Context
}

// NewOpener creates a gousb-backed Opener.
func NewOpener() *Opener {
	return &Opener{ctx: gousb.NewContext()}
}

// Close releases the libusb context.
func (o *Opener) Close() error {
	return o.ctx.Close()
}

// Open claims the device matching identity exclusively and prepares it for
// interrupt-transfer HID report I/O. Only VendorID and ProductID select the
// device; UsagePage and UsageID are not consulted.
func (o *Opener) Open(ctx context.Context, identity hidtransport.Identity) (hidtransport.Device, error) {
	usbDev, err := o.ctx.OpenDeviceWithVIDPID(gousb.ID(identity.VendorID), gousb.ID(identity.ProductID))
	if err != nil {
		return nil, fmt.Errorf("gousb: opening %s: %w", identity, err)
	}
	if usbDev == nil {
		return nil, hidtransport.ErrNoMatchingDevice
	}

	if err := usbDev.SetAutoDetach(true); err != nil {
		usbDev.Close()
		return nil, fmt.Errorf("gousb: detaching kernel driver for %s: %w", identity, err)
	}

	cfg, err := usbDev.Config(1)
	if err != nil {
		usbDev.Close()
		return nil, fmt.Errorf("gousb: selecting config for %s: %w", identity, err)
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		usbDev.Close()
		return nil, fmt.Errorf("gousb: claiming interface for %s: %w", identity, err)
	}

	out, err := intf.OutEndpoint(hidInterruptOutEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		usbDev.Close()
		return nil, fmt.Errorf("gousb: opening output endpoint for %s: %w", identity, err)
	}

	in, err := intf.InEndpoint(hidInterruptInEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		usbDev.Close()
		return nil, fmt.Errorf("gousb: opening input endpoint for %s: %w", identity, err)
	}

	return &device{
		usbDev:           usbDev,
		cfg:              cfg,
		intf:             intf,
		out:              out,
		in:               in,
		outputReportSize: defaultOutputReportSize,
	}, nil
}

// device is a claimed HID interface over one USB device.
type device struct {
	usbDev           *gousb.Device
	cfg              *gousb.Config
	intf             *gousb.Interface
	out              *gousb.OutEndpoint
	in               *gousb.InEndpoint
	outputReportSize int
}

func (d *device) OutputReportSize() int { return d.outputReportSize }

func (d *device) SendOutputReport(ctx context.Context, reportID byte, payload []byte) error {
	frame := make([]byte, d.outputReportSize)
	frame[0] = reportID
	copy(frame[1:], payload)

	done := make(chan error, 1)
	go func() {
		_, err := d.out.Write(frame)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *device) ReadInputReport(ctx context.Context) (byte, []byte, error) {
	buf := make([]byte, d.in.Desc.MaxPacketSize)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := d.in.Read(buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return 0, nil, r.err
		}
		if r.n == 0 {
			return 0, nil, fmt.Errorf("gousb: empty input report")
		}
		return buf[0], buf[1:r.n], nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (d *device) GetIndexedString(ctx context.Context, index int) (string, error) {
	return d.usbDev.GetStringDescriptor(index)
}

func (d *device) Close() error {
	d.intf.Close()
	d.cfg.Close()
	return d.usbDev.Close()
}
