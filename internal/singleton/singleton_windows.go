//go:build windows

package singleton

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/windows"
)

type windowsLock struct {
	handle windows.Handle
}

// Acquire creates (or opens) a named mutex and reports ErrAlreadyRunning if
// it already existed, the same signal Windows services conventionally use
// for single-instance enforcement. CreateMutex returns a valid handle
// together with ERROR_ALREADY_EXISTS when another process owns the name, so
// that case closes the handle instead of keeping a second reference alive.
func Acquire(name string) (Lock, error) {
	// Callers pass a filesystem path (the unix build locks a file); mutex
	// names reject path separators, so flatten them.
	name = strings.NewReplacer(`\`, "_", "/", "_", ":", "_").Replace(name)
	ptr, err := windows.UTF16PtrFromString(`Global\` + name)
	if err != nil {
		return nil, fmt.Errorf("encode mutex name: %w", err)
	}
	handle, err := windows.CreateMutex(nil, false, ptr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}
		return nil, ErrAlreadyRunning{}
	}
	if err != nil {
		return nil, fmt.Errorf("create mutex: %w", err)
	}
	return &windowsLock{handle: handle}, nil
}

func (l *windowsLock) Release() error {
	return windows.CloseHandle(l.handle)
}
