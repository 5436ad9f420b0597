package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"respite/internal/wire"
)

const stateFileName = "state.bin"

// ErrNoState is returned when no state was saved yet.
var ErrNoState = errors.New("no saved state")

// StatePath returns the state file inside dir, defaulting to the user cache
// directory of appName.
func StatePath(appName, dir string) (string, error) {
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("resolve user cache dir: %w", err)
		}
		dir = filepath.Join(cacheDir, appName)
	}
	return filepath.Join(dir, stateFileName), nil
}

// SaveState writes snapshot to path using the binary snapshot encoding.
func SaveState(path string, snapshot wire.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, wire.EncodeSnapshot(snapshot), 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(temporary, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// LoadState reads the snapshot stored at path.
func LoadState(path string) (wire.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return wire.Snapshot{}, ErrNoState
		}
		return wire.Snapshot{}, fmt.Errorf("read state file: %w", err)
	}

	snapshot, err := wire.DecodeSnapshot(data)
	if err != nil {
		return wire.Snapshot{}, fmt.Errorf("decode state file %s: %w", path, err)
	}
	return snapshot, nil
}
