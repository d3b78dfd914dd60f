package hidups

import (
	"context"

	"github.com/sweeney/ups-guardian/internal/protocol"
)

// Ups is the capability the poller depends on: a single blocking status
// query, plus a beeper toggle. Dialect frontends (voltronic, megatec)
// implement this over a Session or a raw hidtransport.Device.
type Ups interface {
	Status(ctx context.Context) (protocol.UpsStatus, error)
	BeeperToggle(ctx context.Context) error
}
