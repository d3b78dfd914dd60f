// Package voltronic implements hidups.Ups for the "V" protocol dialect: a
// "QS" status query framed and parsed by the protocol package, fronted by a
// "M" dialect probe re-issued before every query (the device has been
// observed to answer "M" with something other than "V" after certain
// firmware resets, so probing once at startup is not trusted).
package voltronic

import (
	"context"
	"fmt"

	"github.com/sweeney/ups-guardian/internal/hidups"
	"github.com/sweeney/ups-guardian/internal/protocol"
)

// Ups queries a Voltronic-dialect device over a hidups.Session.
type Ups struct {
	session *hidups.Session
}

// New wraps an established session. The session is not probed until the
// first Status call.
func New(session *hidups.Session) *Ups {
	return &Ups{session: session}
}

func (u *Ups) dialect(ctx context.Context) (protocol.Dialect, error) {
	response, err := u.session.Transact(ctx, "M")
	if err != nil {
		return protocol.DialectUnknown, fmt.Errorf("voltronic: probing dialect: %w", err)
	}
	return protocol.ParseDialect(response), nil
}

// Status re-probes the dialect, then issues "QS" and parses the response.
func (u *Ups) Status(ctx context.Context) (protocol.UpsStatus, error) {
	dialect, err := u.dialect(ctx)
	if err != nil {
		return protocol.UpsStatus{}, err
	}
	if dialect != protocol.DialectV {
		return protocol.UpsStatus{}, &protocol.ErrUnsupportedDialect{Dialect: dialect}
	}

	response, err := u.session.Transact(ctx, "QS")
	if err != nil {
		return protocol.UpsStatus{}, fmt.Errorf("voltronic: querying status: %w", err)
	}

	// Transact strips the terminator; ParseStatus expects the full framed
	// line, so it is restored here.
	status, err := protocol.ParseStatus(response + string(rune(protocol.Terminator)))
	if err != nil {
		return protocol.UpsStatus{}, fmt.Errorf("voltronic: parsing status: %w", err)
	}
	return status, nil
}

// BeeperToggle is not implemented for the V dialect in this family of
// devices; the beeper is driven entirely by the firmware's own state
// machine and reported back via protocol.BeeperActive.
func (u *Ups) BeeperToggle(ctx context.Context) error {
	return fmt.Errorf("voltronic: beeper toggle not supported by this dialect")
}
