// Package powerctl defines the capability boundary for shutdown/hibernate
// actions and for the scoped privilege needed to take them. The concrete
// implementation lives in powerctl/logind.
package powerctl

import "context"

// Controller carries out a shutdown or hibernate action. Implementations
// are expected to have already acquired whatever privilege the platform
// requires (on Linux, an inhibitor lock released immediately before the
// action is requested).
type Controller interface {
	InitiateShutdown(ctx context.Context, hibernate bool) error
}
