//go:build unix

package lockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockExclusive(f *os.File, blocking bool) error {
	how := unix.LOCK_EX
	if !blocking {
		how |= unix.LOCK_NB
	}
	return doFlock(f, how)
}

func lockShared(f *os.File, blocking bool) error {
	how := unix.LOCK_SH
	if !blocking {
		how |= unix.LOCK_NB
	}
	return doFlock(f, how)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

func doFlock(f *os.File, how int) error {
	err := unix.Flock(int(f.Fd()), how)
	if err == unix.EWOULDBLOCK {
		return ErrBusy
	}
	return err
}
