//go:build windows

package overlay

import (
	"fyne.io/fyne/v2/driver"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	exStyleIndex   = ^uintptr(19) // GWL_EXSTYLE (-20)
	exStyleLayered = 0x00080000   // WS_EX_LAYERED
	layeredByAlpha = 0x2          // LWA_ALPHA
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	getWindowLongPtr      = user32.NewProc("GetWindowLongPtrW")
	setWindowLongPtr      = user32.NewProc("SetWindowLongPtrW")
	setLayeredWindowAttrs = user32.NewProc("SetLayeredWindowAttributes")
)

// applyNativeOpacity makes the break window translucent as a whole.
func (overlay *Window) applyNativeOpacity(alpha uint8) {
	native, ok := overlay.window.(driver.NativeWindow)
	if !ok {
		return
	}
	native.RunNative(func(context any) {
		hwnd := windowHandle(context)
		if hwnd == 0 {
			overlay.logger.Debug("no native handle for break window")
			return
		}
		style, _, _ := getWindowLongPtr.Call(hwnd, exStyleIndex)
		if style&exStyleLayered == 0 {
			setWindowLongPtr.Call(hwnd, exStyleIndex, style|exStyleLayered)
		}
		if ret, _, err := setLayeredWindowAttrs.Call(hwnd, 0, uintptr(alpha), layeredByAlpha); ret == 0 {
			overlay.logger.Debug("set layered window attributes", zap.Error(err))
		}
	})
}

func windowHandle(context any) uintptr {
	switch value := context.(type) {
	case driver.WindowsWindowContext:
		return value.HWND
	case *driver.WindowsWindowContext:
		if value != nil {
			return value.HWND
		}
	}
	return 0
}
