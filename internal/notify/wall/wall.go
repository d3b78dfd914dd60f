// Package wall implements notify.Notifier on Linux by enumerating active
// local sessions over systemd-logind's D-Bus API and shelling out to
// wall(1) once per listed session — the same "enumerate, then send once per
// session" shape as the original WTSServer implementation, re-expressed for
// a platform with no WTSSendMessageW equivalent. wall(1) is not targeted at
// a session: each run broadcasts to every logged-in terminal.
package wall

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/godbus/dbus/v5"
)

const (
	logindDest = "org.freedesktop.login1"
	logindPath = "/org/freedesktop/login1"
)

// session mirrors one entry of logind's ListSessions reply.
type session struct {
	ID     string
	UserID uint32
	User   string
	Seat   string
	Path   dbus.ObjectPath
}

// Notifier broadcasts a wall(1) message to every active local session.
type Notifier struct {
	conn *dbus.Conn
}

// New dials the system bus.
func New() (*Notifier, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("wall: connecting to system bus: %w", err)
	}
	return &Notifier{conn: conn}, nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	return n.conn.Close()
}

// Notify lists active sessions via logind and runs wall(1) with
// title/message once per listed session. A session-enumeration failure is
// returned to the caller; an individual wall(1) failure for one session is
// logged by the caller and does not abort the broadcast to the rest.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	sessions, err := n.listSessions()
	if err != nil {
		return fmt.Errorf("wall: enumerating sessions: %w", err)
	}

	body := fmt.Sprintf("%s\n\n%s", title, message)

	var lastErr error
	for _, s := range sessions {
		if err := n.wallToSession(ctx, s, body); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (n *Notifier) listSessions() ([]session, error) {
	obj := n.conn.Object(logindDest, dbus.ObjectPath(logindPath))

	var raw [][]interface{}
	if err := obj.Call("org.freedesktop.login1.Manager.ListSessions", 0).Store(&raw); err != nil {
		return nil, err
	}

	sessions := make([]session, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 5 {
			continue
		}
		id, _ := entry[0].(string)
		uid, _ := entry[1].(uint32)
		user, _ := entry[2].(string)
		seat, _ := entry[3].(string)
		path, _ := entry[4].(dbus.ObjectPath)
		sessions = append(sessions, session{ID: id, UserID: uid, User: user, Seat: seat, Path: path})
	}
	return sessions, nil
}

// wallToSession runs wall(1) with body on behalf of s. The session is used
// only to label an error: wall is given no terminal or user, so it
// broadcasts to every logged-in terminal, and a message sent for N sessions
// reaches each terminal N times.
func (n *Notifier) wallToSession(ctx context.Context, s session, body string) error {
	cmd := exec.CommandContext(ctx, "wall", "-n", body)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wall: notifying session %s (user %s): %w", s.ID, s.User, err)
	}
	return nil
}
