//go:build !linux && !darwin && !windows

package platform

import (
	"errors"
	"path/filepath"
)

var errAutostartUnsupported = errors.New("autostart not supported on this platform")

func (autostart) Enable(LoginEntry) error      { return errAutostartUnsupported }
func (autostart) Disable(string) error         { return nil }
func (autostart) Enabled(string) (bool, error) { return false, nil }
func fallbackConfigDir(homeDir string) string  { return filepath.Join(homeDir, ".config") }
