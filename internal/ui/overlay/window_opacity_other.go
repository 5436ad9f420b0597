//go:build !windows

package overlay

func (overlay *Window) applyNativeOpacity(uint8) {}
