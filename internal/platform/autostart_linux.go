//go:build linux

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (autostart) Enable(entry LoginEntry) error {
	if err := entry.validate(); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	path, err := desktopEntryPath(entry.AppName)
	if err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("enable autostart: create autostart dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(buildDesktopEntry(entry)), 0o644); err != nil {
		return fmt.Errorf("enable autostart: write desktop entry: %w", err)
	}
	return nil
}

func (autostart) Disable(appName string) error {
	path, err := desktopEntryPath(appName)
	if err != nil {
		return fmt.Errorf("disable autostart: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disable autostart: remove desktop entry: %w", err)
	}
	return nil
}

func (autostart) Enabled(appName string) (bool, error) {
	path, err := desktopEntryPath(appName)
	if err != nil {
		return false, err
	}
	return fileExists(path)
}

func fallbackConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config")
}

func desktopEntryPath(appName string) (string, error) {
	configDir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "autostart", entryName(appName)+".desktop"), nil
}

func buildDesktopEntry(entry LoginEntry) string {
	command := make([]string, 0, len(entry.Args)+1)
	for _, field := range append([]string{entry.ExecPath}, entry.Args...) {
		if strings.ContainsAny(field, " \t\"") {
			field = `"` + strings.ReplaceAll(field, `"`, `\"`) + `"`
		}
		command = append(command, field)
	}

	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Comment=Reminds you to take breaks
Exec=%s
X-GNOME-Autostart-enabled=true
Terminal=false
`, entry.AppName, strings.Join(command, " "))
}
