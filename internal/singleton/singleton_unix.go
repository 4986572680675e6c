//go:build unix

package singleton

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type unixLock struct {
	f *os.File
}

// Acquire opens (creating if needed) a lock file at path and takes a
// non-blocking exclusive flock on it. If another process already holds the
// lock, it returns ErrAlreadyRunning.
func Acquire(path string) (Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrAlreadyRunning{}
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &unixLock{f: f}, nil
}

func (l *unixLock) Release() error {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
