// Package notify defines the capability boundary for broadcasting a
// textual warning to active local user sessions — the Go re-expression of
// the Windows WTSServer/WTSSendMessageW session-messaging API. The concrete
// implementation lives in notify/wall.
package notify

import "context"

// Notifier broadcasts title/message to every active local session.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}
