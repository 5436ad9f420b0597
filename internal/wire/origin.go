package wire

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
)

var (
	localOnce   sync.Once
	localOrigin Origin
)

// LocalOrigin identifies this process: the host name and a per-process
// instance id.
func LocalOrigin(ctx context.Context) Origin {
	localOnce.Do(func() {
		localOrigin = Origin{Host: hostName(ctx), Instance: uuid.NewString()}
	})
	return localOrigin
}

func hostName(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}
