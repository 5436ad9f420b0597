package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidLoginEntry is returned for an entry without a name or executable.
var ErrInvalidLoginEntry = errors.New("invalid login entry")

// LoginEntry describes how the application is launched at login.
type LoginEntry struct {
	AppName  string
	ExecPath string
	Args     []string
}

func (entry LoginEntry) validate() error {
	if strings.TrimSpace(entry.AppName) == "" {
		return fmt.Errorf("%w: app name is empty", ErrInvalidLoginEntry)
	}
	if entry.ExecPath == "" {
		return fmt.Errorf("%w: exec path is empty", ErrInvalidLoginEntry)
	}
	return nil
}

// Autostart installs and removes the per-user login entry.
type Autostart interface {
	Enable(entry LoginEntry) error
	Disable(appName string) error
	Enabled(appName string) (bool, error)
}

type autostart struct{}

// NewAutostart returns the implementation for the running OS.
func NewAutostart() Autostart {
	return autostart{}
}

// ApplyAutostart installs the running executable with args, or removes the
// entry when enabled is false.
func ApplyAutostart(service Autostart, appName string, enabled bool, args ...string) error {
	if !enabled {
		return service.Disable(appName)
	}
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("enable autostart: resolve executable: %w", err)
	}
	return service.Enable(LoginEntry{AppName: appName, ExecPath: execPath, Args: args})
}

// userConfigDir is the OS configuration directory, falling back to the
// conventional location below the home directory.
func userConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err == nil && configDir != "" {
		return configDir, nil
	}
	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return "", fmt.Errorf("get config dir: %w", errors.Join(err, homeErr))
	}
	return fallbackConfigDir(homeDir), nil
}

// entryName turns an application name into a file or registry friendly slug.
func entryName(appName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(appName)), " ", "-")
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
