package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	notificationsName      = "org.freedesktop.Notifications"
	notificationsPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsInterface = "org.freedesktop.Notifications"

	defaultAction = "default"
)

// DBusDesktop talks to the freedesktop notification server on the session bus.
type DBusDesktop struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string
	icon    string
	expire  time.Duration
	logger  zerolog.Logger

	signals chan *dbus.Signal
	clicks  chan uint32
	closed  chan uint32
	once    sync.Once
}

func NewDBusDesktop(appName, icon string, expire time.Duration, logger zerolog.Logger) (*DBusDesktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	for _, member := range []string{"ActionInvoked", "NotificationClosed"} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath(notificationsPath),
			dbus.WithMatchInterface(notificationsInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to subscribe to %s", member)
		}
	}

	d := &DBusDesktop{
		conn:    conn,
		obj:     conn.Object(notificationsName, notificationsPath),
		appName: appName,
		icon:    icon,
		expire:  expire,
		logger:  logger,
		signals: make(chan *dbus.Signal, 16),
		clicks:  make(chan uint32, 16),
		closed:  make(chan uint32, 16),
	}
	conn.Signal(d.signals)
	go d.forwardSignals()

	return d, nil
}

func (d *DBusDesktop) Notify(ctx context.Context, n Notification) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	if n.Silent {
		hints["suppress-sound"] = dbus.MakeVariant(true)
	} else {
		hints["sound-name"] = dbus.MakeVariant("message-new-instant")
	}

	timeout := int32(-1)
	if d.expire > 0 {
		timeout = int32(d.expire.Milliseconds())
	}

	var id uint32
	call := d.obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		d.appName, uint32(0), d.icon, n.Summary, n.Body,
		[]string{defaultAction, "開く"}, hints, timeout)
	if call.Err != nil {
		return 0, errors.Wrap(call.Err, "notify call failed")
	}
	if err := call.Store(&id); err != nil {
		return 0, errors.Wrap(err, "failed to read notification id")
	}
	return id, nil
}

func (d *DBusDesktop) Close(id uint32) error {
	call := d.obj.Call(notificationsInterface+".CloseNotification", 0, id)
	return errors.Wrap(call.Err, "close notification failed")
}

func (d *DBusDesktop) Clicks() <-chan uint32 {
	return d.clicks
}

// Closed reports notifications that expired, were dismissed or closed by
// us.
func (d *DBusDesktop) Closed() <-chan uint32 {
	return d.closed
}

// Shutdown releases the bus connection and ends the click stream.
func (d *DBusDesktop) Shutdown() error {
	var err error
	d.once.Do(func() {
		d.conn.RemoveSignal(d.signals)
		err = d.conn.Close()
		close(d.signals)
	})
	return err
}

func (d *DBusDesktop) forwardSignals() {
	defer close(d.clicks)
	defer close(d.closed)
	for sig := range d.signals {
		if sig == nil || len(sig.Body) < 2 {
			continue
		}
		id, ok := sig.Body[0].(uint32)
		if !ok {
			continue
		}

		switch sig.Name {
		case notificationsInterface + ".ActionInvoked":
			if action, _ := sig.Body[1].(string); action != defaultAction {
				continue
			}
			select {
			case d.clicks <- id:
			default:
				d.logger.Warn().Uint32("notification_id", id).Msg("click dropped, handler busy")
			}

		case notificationsInterface + ".NotificationClosed":
			select {
			case d.closed <- id:
			default:
				d.logger.Debug().Uint32("notification_id", id).Msg("close signal dropped")
			}
		}
	}
}
