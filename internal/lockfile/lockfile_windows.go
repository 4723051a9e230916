//go:build windows

package lockfile

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// lockSizeLow locks the first GiB of the file (the high word passed is 0); the lock file is
// always empty, so the exact extent is immaterial, it only needs to be
// nonzero for LockFileEx to take effect consistently across platforms.
const lockSizeLow = 1 << 30

func lockExclusive(f *os.File, blocking bool) error {
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK)
	if !blocking {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}
	return doLockFileEx(f, flags)
}

func lockShared(f *os.File, blocking bool) error {
	var flags uint32
	if !blocking {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}
	return doLockFileEx(f, flags)
}

func doLockFileEx(f *os.File, flags uint32) error {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, lockSizeLow, 0, ol)
	if err == windows.ERROR_LOCK_VIOLATION || err == syscall.EWOULDBLOCK {
		return ErrBusy
	}
	return err
}

func unlock(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, lockSizeLow, 0, ol)
}
