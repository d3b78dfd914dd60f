// Package hidups implements the transaction layer over a raw hidtransport
// device: framing a command, sending it as a single HID output report, and
// reassembling a multi-packet input-report response under the nested send
// and receive timeouts the Voltronic/Megatec protocol requires.
package hidups

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sweeney/ups-guardian/internal/hidtransport"
	"github.com/sweeney/ups-guardian/internal/protocol"
)

// ReportID is the fixed HID report ID this family of devices uses for both
// output (command) and input (response) reports.
const ReportID byte = 0

// Nested timeouts: SendTimeout bounds handing the command to the transport;
// ReceiveTimeout bounds each individual input-report read; ReceiveTotalTimeout
// bounds reassembling the complete, terminator-delimited response out of
// however many packets that takes.
const (
	SendTimeout         = 1000 * time.Millisecond
	ReceiveTimeout      = 250 * time.Millisecond
	ReceiveTotalTimeout = 2400 * time.Millisecond
)

// ErrUnexpectedReportID is returned when a device answers on a report ID
// other than ReportID.
var ErrUnexpectedReportID = errors.New("hidups: unexpected HID report ID")

// ErrCommandTooLong is returned when a command does not fit in the
// device's output report, one byte of which is reserved for the report ID.
// Checked before any I/O is attempted.
var ErrCommandTooLong = errors.New("hidups: command does not fit in output report")

// ErrResponseNotUTF8 is returned when a reassembled response is not valid
// UTF-8.
var ErrResponseNotUTF8 = errors.New("hidups: response is not valid UTF-8")

// Session serializes request/response transactions against one HID device.
// A single physical UPS only ever answers one command at a time, so
// concurrent Transact calls on a shared Session are serialized: each full
// send-and-receive exchange completes before the next one starts.
type Session struct {
	mu     sync.Mutex
	device hidtransport.Device
}

// NewSession wraps an already-open device.
func NewSession(device hidtransport.Device) *Session {
	return &Session{device: device}
}

// Transact sends command, terminator-framed, and returns the terminator-
// stripped response payload (the leading header byte, if any, is left
// intact for the caller to validate).
func (s *Session) Transact(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sendCommand(ctx, command); err != nil {
		return "", err
	}
	return s.readResponse(ctx)
}

func (s *Session) sendCommand(ctx context.Context, command string) error {
	frame := protocol.EncodeCommand(command)
	if maxLen := s.device.OutputReportSize() - 1; len(frame) > maxLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrCommandTooLong, len(frame), maxLen)
	}

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	if err := s.device.SendOutputReport(ctx, ReportID, frame); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("hidups: sending command timed out: %w", ctx.Err())
		}
		return fmt.Errorf("hidups: sending command: %w", err)
	}
	return nil
}

func (s *Session) readResponse(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ReceiveTotalTimeout)
	defer cancel()

	raw, err := s.readAllResponsePackets(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("hidups: receiving response timed out: %w", ctx.Err())
		}
		return "", err
	}

	if !utf8.Valid(raw) {
		return "", ErrResponseNotUTF8
	}

	idx := bytes.IndexByte(raw, protocol.Terminator)
	if idx < 0 {
		return "", fmt.Errorf("hidups: response missing terminator")
	}
	return string(raw[:idx]), nil
}

func (s *Session) readAllResponsePackets(ctx context.Context) ([]byte, error) {
	var response []byte
	for {
		packet, err := s.readSingleResponsePacket(ctx)
		if err != nil {
			return nil, err
		}
		response = append(response, packet...)
		if bytes.IndexByte(packet, protocol.Terminator) >= 0 {
			break
		}
	}
	return response, nil
}

func (s *Session) readSingleResponsePacket(ctx context.Context) ([]byte, error) {
	packetCtx, cancel := context.WithTimeout(ctx, ReceiveTimeout)
	defer cancel()

	reportID, payload, err := s.device.ReadInputReport(packetCtx)
	if err != nil {
		if packetCtx.Err() != nil {
			return nil, fmt.Errorf("hidups: receiving response packet timed out: %w", packetCtx.Err())
		}
		return nil, fmt.Errorf("hidups: reading input report: %w", err)
	}
	if reportID != ReportID {
		return nil, ErrUnexpectedReportID
	}
	return payload, nil
}
