//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const registryRunKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

func (autostart) Enable(entry LoginEntry) error {
	if err := entry.validate(); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	if err := reg("add", registryRunKey, "/v", entryName(entry.AppName), "/t", "REG_SZ", "/d", commandLine(entry), "/f"); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	return nil
}

func (autostart) Disable(appName string) error {
	enabled, err := autostart{}.Enabled(appName)
	if err != nil || !enabled {
		return err
	}
	if err := reg("delete", registryRunKey, "/v", entryName(appName), "/f"); err != nil {
		return fmt.Errorf("disable autostart: %w", err)
	}
	return nil
}

func (autostart) Enabled(appName string) (bool, error) {
	err := reg("query", registryRunKey, "/v", entryName(appName))
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exitErr):
		return false, nil
	default:
		return false, err
	}
}

func reg(args ...string) error {
	output, err := exec.Command("reg", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("reg %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

func fallbackConfigDir(homeDir string) string {
	return filepath.Join(homeDir, "AppData", "Roaming")
}

func commandLine(entry LoginEntry) string {
	fields := []string{quoteWindowsPath(entry.ExecPath)}
	for _, arg := range entry.Args {
		if strings.ContainsAny(arg, " \t") {
			arg = quoteWindowsPath(arg)
		}
		fields = append(fields, arg)
	}
	return strings.Join(fields, " ")
}

func quoteWindowsPath(path string) string {
	return `"` + strings.Trim(path, `"`) + `"`
}
