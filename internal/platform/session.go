package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned when the session bus goes away.
var ErrSessionClosed = errors.New("session bus closed")

var screensaverInterfaces = []string{
	"org.freedesktop.ScreenSaver",
	"org.gnome.ScreenSaver",
	"org.mate.ScreenSaver",
	"org.cinnamon.ScreenSaver",
}

// SessionWatcher reports screensaver activation from the session bus.
type SessionWatcher struct {
	logger *zap.Logger
}

// NewSessionWatcher creates a watcher.
func NewSessionWatcher(logger *zap.Logger) *SessionWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionWatcher{logger: logger.Named("session")}
}

// Watch calls onChange with true when the screensaver activates and false when
// it deactivates, until ctx is done.
func (watcher *SessionWatcher) Watch(ctx context.Context, onChange func(idle bool)) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	for _, iface := range screensaverInterfaces {
		if err := conn.AddMatchSignal(dbus.WithMatchInterface(iface), dbus.WithMatchMember("ActiveChanged")); err != nil {
			return fmt.Errorf("subscribe %s: %w", iface, err)
		}
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)
	watcher.logger.Debug("watching screensaver signals")

	for {
		select {
		case <-ctx.Done():
			return nil
		case signal, ok := <-signals:
			if !ok {
				return ErrSessionClosed
			}
			if active, ok := screensaverActive(signal); ok {
				watcher.logger.Debug("screensaver changed", zap.Bool("active", active))
				onChange(active)
			}
		}
	}
}

func screensaverActive(signal *dbus.Signal) (bool, bool) {
	if signal == nil || !strings.HasSuffix(signal.Name, ".ActiveChanged") || len(signal.Body) != 1 {
		return false, false
	}
	active, ok := signal.Body[0].(bool)
	return active, ok
}
