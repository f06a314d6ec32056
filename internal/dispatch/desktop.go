package dispatch

import (
	"fmt"
	"time"

	"github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"

	"kalarmd/internal/event"
)

// DesktopDisplayFactory is the default DisplayFactory (§4.9), replacing
// the teacher's notify-send exec.Command call with a direct D-Bus
// org.freedesktop.Notifications session, the way the rest of the
// retrieval pack's desktop-notification examples do it.
type DesktopDisplayFactory struct {
	conn          *dbus.Conn
	notifier      notify.Notifier
	appName       string
	expireTimeout int32
}

// NewDesktopDisplayFactory opens a notification session for appName.
// expireTimeoutMillis is the notification server hint from
// config.NotificationConfig.ExpireTimeoutMillis (0 means the notification
// never expires, the freedesktop notification convention that config's
// "until_dismissed" maps to).
func NewDesktopDisplayFactory(appName string, expireTimeoutMillis int32) (*DesktopDisplayFactory, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("dispatch: connect session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dispatch: dbus auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dispatch: dbus hello: %w", err)
	}
	n, err := notify.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dispatch: notify session: %w", err)
	}
	return &DesktopDisplayFactory{conn: conn, notifier: n, appName: appName, expireTimeout: expireTimeoutMillis}, nil
}

func (f *DesktopDisplayFactory) Close() error {
	return f.conn.Close()
}

// Create shows e on the desktop notification surface. Ack/Defer/Edit are
// actions offered to the user; closing the underlying notification
// satisfies the Display contract's Close.
func (f *DesktopDisplayFactory) Create(e *event.Event, alarm event.SubAlarm, flags DisplayFlags) (Display, error) {
	body := e.Action.Text
	actions := []notify.Action{
		{Key: "ack", Label: "Close"},
	}
	if e.Recurs() {
		actions = append(actions, notify.Action{Key: "defer", Label: "Defer"})
	}
	actions = append(actions, notify.Action{Key: "edit", Label: "Edit…"})

	n := notify.Notification{
		AppName:       f.appName,
		Summary:       summaryFor(e),
		Body:          body,
		ExpireTimeout: f.expireTimeout,
		Actions:       actions,
	}
	id, err := f.notifier.SendNotification(n)
	if err != nil {
		return nil, fmt.Errorf("dispatch: send notification: %w", err)
	}
	return &desktopDisplay{factory: f, id: id}, nil
}

func summaryFor(e *event.Event) string {
	switch e.Action.Kind {
	case event.FileAction:
		return "File alarm: " + e.Action.Text
	default:
		return "Alarm"
	}
}

type desktopDisplay struct {
	factory *DesktopDisplayFactory
	id      uint32
}

func (d *desktopDisplay) Ack() error {
	_, err := d.factory.notifier.CloseNotification(d.id)
	return err
}

func (d *desktopDisplay) Close() error { return d.Ack() }

// Defer is a no-op at the notification-transport level: the caller
// (internal/request, acting on the user's Defer action-key callback)
// is responsible for calling Event.Defer and re-arming the scheduler;
// this only needs to dismiss the current notification.
func (d *desktopDisplay) Defer(t time.Time) error { return d.Ack() }

func (d *desktopDisplay) Edit() error { return nil }
