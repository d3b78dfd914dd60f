// Package logind implements powerctl.Controller and the resume-event
// source over systemd-logind's D-Bus API. It is the Linux analogue of two
// distinct Windows mechanisms the original service combined under one
// SeShutdownPrivilege-enabled thread token: SetSuspendState/
// InitiateSystemShutdownExW for the action itself, and
// SERVICE_CONTROL_POWEREVENT/PBT_APMRESUMEAUTOMATIC for the wake
// notification. Here they are acquired and observed independently, both
// via github.com/godbus/dbus/v5 against org.freedesktop.login1.Manager.
package logind

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/sweeney/ups-guardian/internal/resumesignal"
)

const (
	dest = "org.freedesktop.login1"
	path = "/org/freedesktop/login1"
)

// Controller requests a shutdown or hibernate action through logind.
// It holds a "delay" inhibitor lock for "shutdown:sleep" from New onward so
// the OS cannot suspend or power off out from under the supervisor's own
// grace period; the lock is released immediately before the controller
// issues its own shutdown/hibernate request, the same reset-before-initiate
// ordering the state machine applies to the resume signal. The lock is not
// re-acquired afterwards, so after the first InitiateShutdown call no
// inhibitor is held.
type Controller struct {
	conn      *dbus.Conn
	inhibitFd *os.File
}

// New connects to the system bus and acquires the startup inhibitor lock.
func New(ctx context.Context) (*Controller, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("logind: connecting to system bus: %w", err)
	}

	c := &Controller{conn: conn}
	if err := c.acquireInhibitor(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Controller) acquireInhibitor() error {
	obj := c.conn.Object(dest, dbus.ObjectPath(path))

	var fd dbus.UnixFD
	err := obj.Call("org.freedesktop.login1.Manager.Inhibit", 0,
		"shutdown:sleep",
		"ups-guardian",
		"waiting for grace period to complete",
		"delay",
	).Store(&fd)
	if err != nil {
		return fmt.Errorf("logind: acquiring inhibitor lock: %w", err)
	}
	c.inhibitFd = os.NewFile(uintptr(fd), "logind-inhibitor")
	return nil
}

// releaseInhibitor closes the held inhibitor fd, if any, letting the
// system's own shutdown/sleep proceed unblocked.
func (c *Controller) releaseInhibitor() {
	if c.inhibitFd == nil {
		return
	}
	if err := c.inhibitFd.Close(); err != nil {
		log.Printf("logind: releasing inhibitor lock: %v", err)
	}
	c.inhibitFd = nil
}

// Conn returns the underlying bus connection, so a caller can share it with
// WatchResume rather than opening a second connection to logind.
func (c *Controller) Conn() *dbus.Conn {
	return c.conn
}

// Close releases the bus connection. The inhibitor, if still held, is
// released first.
func (c *Controller) Close() error {
	c.releaseInhibitor()
	return c.conn.Close()
}

// InitiateShutdown releases the startup inhibitor, then asks logind to
// hibernate or power off the host. interactive is left false: the service
// has already completed its own user notification via the notifier.
func (c *Controller) InitiateShutdown(ctx context.Context, hibernate bool) error {
	c.releaseInhibitor()

	obj := c.conn.Object(dest, dbus.ObjectPath(path))
	method := "org.freedesktop.login1.Manager.PowerOff"
	if hibernate {
		method = "org.freedesktop.login1.Manager.Hibernate"
	}

	if err := obj.Call(method, 0, false).Store(); err != nil {
		return fmt.Errorf("logind: %s: %w", method, err)
	}
	return nil
}

// WatchResume subscribes to logind's PrepareForSleep signal and sets resume
// whenever the host finishes resuming from hibernate/sleep
// (PrepareForSleep(false)) — the analogue of
// PBT_APMRESUMEAUTOMATIC arriving at the service control handler. It
// blocks until ctx is cancelled.
func WatchResume(ctx context.Context, conn *dbus.Conn, resume *resumesignal.Signal) error {
	matchRule := "type='signal',interface='org.freedesktop.login1.Manager',member='PrepareForSleep'"
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Store(); err != nil {
		return fmt.Errorf("logind: subscribing to PrepareForSleep: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case sig := <-signals:
			if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" {
				continue
			}
			if len(sig.Body) != 1 {
				continue
			}
			aboutToSleep, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			if !aboutToSleep {
				resume.Set()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
