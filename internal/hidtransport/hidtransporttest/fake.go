// Package hidtransporttest provides an in-memory hidtransport.Device/Opener
// pair for tests, in the same Fake*/Reset()/call-counter style the teacher
// uses for its NUT client and publisher fakes.
package hidtransporttest

import (
	"context"
	"errors"
	"sync"

	"github.com/sweeney/ups-guardian/internal/hidtransport"
)

// Exchange is one scripted output-report -> input-report round trip.
type Exchange struct {
	WantPayload []byte
	ReplyID     byte
	ReplyData   []byte
	ReplyErr    error
	SendErr     error
}

// FakeDevice is a scripted hidtransport.Device. SendOutputReport and
// ReadInputReport each keep their own index into Exchanges: the Nth send
// returns Exchanges[N].SendErr and the Nth read returns Exchanges[N]'s reply,
// so a multi-packet response uses one exchange per packet read.
type FakeDevice struct {
	mu sync.Mutex

	OutputSize int
	Exchanges  []Exchange

	sendCalls int
	readCalls int
	closed    bool
	CloseErr  error

	IndexedStrings map[int]string
	IndexedErr     error
}

// NewFakeDevice returns a FakeDevice with the given scripted exchanges.
func NewFakeDevice(exchanges ...Exchange) *FakeDevice {
	return &FakeDevice{
		OutputSize:     8,
		Exchanges:      exchanges,
		IndexedStrings: map[int]string{},
	}
}

func (d *FakeDevice) OutputReportSize() int { return d.OutputSize }

func (d *FakeDevice) SendOutputReport(ctx context.Context, reportID byte, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.sendCalls
	d.sendCalls++
	if idx >= len(d.Exchanges) {
		return errors.New("hidtransporttest: unexpected SendOutputReport, no exchange scripted")
	}
	return d.Exchanges[idx].SendErr
}

func (d *FakeDevice) ReadInputReport(ctx context.Context) (byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.readCalls
	d.readCalls++
	if idx >= len(d.Exchanges) {
		return 0, nil, errors.New("hidtransporttest: unexpected ReadInputReport, no exchange scripted")
	}
	ex := d.Exchanges[idx]
	if ex.ReplyErr != nil {
		return 0, nil, ex.ReplyErr
	}
	return ex.ReplyID, ex.ReplyData, nil
}

func (d *FakeDevice) GetIndexedString(ctx context.Context, index int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.IndexedErr != nil {
		return "", d.IndexedErr
	}
	return d.IndexedStrings[index], nil
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.CloseErr
}

// Closed reports whether Close was called.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// SendCalls returns the number of SendOutputReport calls observed so far.
func (d *FakeDevice) SendCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendCalls
}

// Reset clears call counters and closed state but keeps the scripted
// exchanges, so a single FakeDevice can be reused across a table of
// subtests the way the teacher's FakePoller is.
func (d *FakeDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendCalls = 0
	d.readCalls = 0
	d.closed = false
}

// FakeOpener hands out a pre-built device, or OpenErr if set. It records the
// identity it was asked to open.
type FakeOpener struct {
	mu sync.Mutex

	Device  hidtransport.Device
	OpenErr error

	lastIdentity hidtransport.Identity
	openCalls    int
}

func NewFakeOpener(device hidtransport.Device) *FakeOpener {
	return &FakeOpener{Device: device}
}

func (o *FakeOpener) Open(ctx context.Context, identity hidtransport.Identity) (hidtransport.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastIdentity = identity
	o.openCalls++
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if o.Device == nil {
		return nil, hidtransport.ErrNoMatchingDevice
	}
	return o.Device, nil
}

// OpenCalls returns how many times Open was called.
func (o *FakeOpener) OpenCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.openCalls
}

// LastIdentity returns the identity passed to the most recent Open call.
func (o *FakeOpener) LastIdentity() hidtransport.Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastIdentity
}
