//go:build linux

package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mutterDestination = "org.gnome.Mutter.IdleMonitor"
	mutterObjectPath  = "/org/gnome/Mutter/IdleMonitor/Core"
	mutterMethod      = "org.gnome.Mutter.IdleMonitor.GetIdletime"
)

// mutterIdleProvider asks the GNOME compositor, which also works on Wayland.
type mutterIdleProvider struct {
	conn *dbus.Conn
}

type xprintidleProvider struct {
	path string
}

type unsupportedIdleProvider struct{}

func newIdleProvider() IdleProvider {
	if conn, err := dbus.ConnectSessionBus(); err == nil {
		provider := &mutterIdleProvider{conn: conn}
		if _, err := provider.IdleDuration(); err == nil {
			return provider
		}
		conn.Close()
	}
	if path, err := exec.LookPath("xprintidle"); err == nil {
		return &xprintidleProvider{path: path}
	}
	return unsupportedIdleProvider{}
}

func (provider *mutterIdleProvider) IdleDuration() (time.Duration, error) {
	var idleMillis uint64
	call := provider.conn.Object(mutterDestination, dbus.ObjectPath(mutterObjectPath)).Call(mutterMethod, 0)
	if call.Err != nil {
		return 0, fmt.Errorf("mutter idle monitor: %w", call.Err)
	}
	if err := call.Store(&idleMillis); err != nil {
		return 0, fmt.Errorf("mutter idle monitor: %w", err)
	}
	return time.Duration(idleMillis) * time.Millisecond, nil
}

func (provider *xprintidleProvider) IdleDuration() (time.Duration, error) {
	output, err := exec.Command(provider.path).Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	return parseIdleMillis(string(output))
}

func (unsupportedIdleProvider) IdleDuration() (time.Duration, error) {
	return 0, ErrIdleUnsupported
}

func parseIdleMillis(output string) (time.Duration, error) {
	value := strings.TrimSpace(output)
	if value == "" {
		return 0, errors.New("parse idle milliseconds: empty output")
	}
	idleMillis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse idle milliseconds: %w", err)
	}
	if idleMillis < 0 {
		idleMillis = 0
	}
	return time.Duration(idleMillis) * time.Millisecond, nil
}
