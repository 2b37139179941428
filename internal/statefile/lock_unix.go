//go:build !windows

package statefile

import (
	"fmt"
	"os"
	"syscall"
)

// lockHandle is an acquired lock that must be released.
type lockHandle struct {
	file *os.File
}

// lock takes an exclusive flock on path+".lock", blocking until it is free.
func lock(path string) (*lockHandle, error) {
	f, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return &lockHandle{file: f}, nil
}

func (h *lockHandle) unlock() error {
	if h == nil || h.file == nil {
		return nil
	}
	f := h.file
	h.file = nil
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	return nil
}
