// Package protocol implements the Voltronic/Megatec ASCII request/response
// wire format: command framing, status-response parsing, and the derived
// work-mode rule. There is no I/O here — every function is a pure
// transformation over bytes or strings, safe to call from any goroutine.
package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Header and Terminator are the framing bytes of every request and response.
const (
	Header     = '('
	Terminator = '\r'
)

// StatusFlags is the 8-bit flag set reported in the last field of a status
// response.
type StatusFlags uint8

const (
	BeeperActive       StatusFlags = 0x01
	UpsShutdownActive  StatusFlags = 0x02
	SelfTestInProgress StatusFlags = 0x04
	UpsLineInteractive StatusFlags = 0x08
	UpsFault           StatusFlags = 0x10
	BoostOrBuckMode    StatusFlags = 0x20
	BatteryLow         StatusFlags = 0x40
	UtilityFail        StatusFlags = 0x80
)

// Has reports whether every bit set in want is also set in f.
func (f StatusFlags) Has(want StatusFlags) bool {
	return f&want == want
}

// String renders the flags as the eight-character binary string the wire
// format uses, most-significant bit first.
func (f StatusFlags) String() string {
	return fmt.Sprintf("%08b", uint8(f))
}

// WorkMode is the derived operational state of the UPS.
type WorkMode int

const (
	Line WorkMode = iota
	Battery
	BatteryTest
	Fault
)

func (m WorkMode) String() string {
	switch m {
	case Line:
		return "Line"
	case Battery:
		return "Battery"
	case BatteryTest:
		return "BatteryTest"
	case Fault:
		return "Fault"
	default:
		return "Unknown"
	}
}

// DeriveWorkMode applies the priority rule over flags: UPS_FAULT beats
// UTILITY_FAIL beats SELF_TEST_IN_PROGRESS, anything else is Line.
func DeriveWorkMode(flags StatusFlags) WorkMode {
	switch {
	case flags.Has(UpsFault):
		return Fault
	case flags.Has(UtilityFail):
		return Battery
	case flags.Has(SelfTestInProgress):
		return BatteryTest
	default:
		return Line
	}
}

// UpsStatus is an immutable snapshot parsed from one status response.
// Numeric fields are NaN when the corresponding wire field failed to parse;
// OutputLoadLevel defaults to 0 in the same case.
type UpsStatus struct {
	InputVoltage        float64
	InputFaultVoltage   float64
	OutputVoltage       float64
	OutputLoadLevel     uint32
	OutputFrequency     float64
	BatteryVoltage      float64
	InternalTemperature float64
	Flags               StatusFlags
	WorkMode            WorkMode
}

// String renders a status line suitable for log output.
func (s UpsStatus) String() string {
	return fmt.Sprintf(
		"UpsStatus{in=%.1fV out=%.1fV load=%d%% battery=%.1fV flags=%s mode=%s}",
		s.InputVoltage, s.OutputVoltage, s.OutputLoadLevel, s.BatteryVoltage, s.Flags, s.WorkMode,
	)
}

// ParseStatus decodes a complete status response (the '(' ... '\r' payload
// already isolated by the session layer is NOT expected here — callers pass
// the full framed line). Structural violations (missing header, missing
// terminator, wrong field count) are returned as errors. Individual numeric
// fields that fail to parse are recovered as NaN/0 rather than failing the
// whole parse, per the deliberate lossy-parsing policy: a partial sensor
// failure must never mask the flags byte.
func ParseStatus(line string) (UpsStatus, error) {
	if len(line) == 0 || line[0] != Header {
		return UpsStatus{}, fmt.Errorf("protocol: status response missing %q header", string(rune(Header)))
	}
	term := strings.IndexByte(line, Terminator)
	if term < 0 {
		return UpsStatus{}, fmt.Errorf("protocol: status response missing terminator")
	}
	payload := line[1:term]

	fields := strings.Fields(payload)
	if len(fields) != 8 {
		return UpsStatus{}, fmt.Errorf("protocol: expected 8 status fields, got %d", len(fields))
	}

	flags := parseFlags(fields[7])

	status := UpsStatus{
		InputVoltage:        parseFloat(fields[0]),
		InputFaultVoltage:   parseFloat(fields[1]),
		OutputVoltage:       parseFloat(fields[2]),
		OutputLoadLevel:     parseLoadLevel(fields[3]),
		OutputFrequency:     parseFloat(fields[4]),
		BatteryVoltage:      parseFloat(fields[5]),
		InternalTemperature: parseFloat(fields[6]),
		Flags:               flags,
		WorkMode:            DeriveWorkMode(flags),
	}
	return status, nil
}

// parseFloat parses a wire numeric field, substituting NaN on failure.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseLoadLevel parses the non-negative integer percentage field,
// substituting 0 on failure.
func parseLoadLevel(s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// parseFlags parses an 8-digit ASCII binary string into a flag byte,
// substituting 0x00 on any parse failure (wrong length or non-binary
// digits) per the Open Question preserved as-is in the spec: this can
// silently suppress UTILITY_FAIL detection if the wire field is malformed.
func parseFlags(s string) StatusFlags {
	if len(s) != 8 {
		return 0
	}
	v, err := strconv.ParseUint(s, 2, 8)
	if err != nil {
		return 0
	}
	return StatusFlags(v)
}
