//go:build darwin

package platform

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type idleProvider struct {
	execute func(name string, args ...string) ([]byte, error)
}

func newIdleProvider() IdleProvider {
	return &idleProvider{execute: func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).Output()
	}}
}

func (provider *idleProvider) IdleDuration() (time.Duration, error) {
	output, err := provider.execute("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, fmt.Errorf("ioreg: %w", err)
	}
	nanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, err
	}
	return time.Duration(nanos), nil
}

// parseHIDIdleTime extracts "HIDIdleTime" = <nanoseconds> from ioreg output.
func parseHIDIdleTime(output []byte) (int64, error) {
	for _, line := range bytes.Split(output, []byte("\n")) {
		text := strings.TrimSpace(string(line))
		if !strings.Contains(text, "HIDIdleTime") {
			continue
		}
		parts := strings.SplitN(text, "=", 2)
		if len(parts) != 2 {
			continue
		}
		value, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse HIDIdleTime: %w", err)
		}
		return value, nil
	}
	return 0, errors.New("HIDIdleTime not found in ioreg output")
}
