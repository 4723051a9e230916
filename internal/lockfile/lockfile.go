// Package lockfile implements the cross-process advisory locking spec.md §5
// requires around the log's append+fsync+watermark sequence: an exclusive
// lock for writers, a shared lock for incremental-reimport readers.
//
// Grounded on _examples/steveyegge-beads/internal/lockfile (lock_unix.go /
// lock_shared_unix.go / lock_shared_windows.go), adapted to tissue's single
// lock file (the sibling "lock" file named in spec.md §6) rather than the
// teacher's daemon pid-file locking.
package lockfile

import (
	"errors"
	"os"
)

// ErrBusy is returned by the non-blocking acquire functions when another
// process already holds a conflicting lock.
var ErrBusy = errors.New("lockfile: busy, held by another process")

// Lock wraps the sibling "lock" file named in spec.md §6. Open it once per
// store and reuse it for every acquire/release pair; opening a fresh *os.File
// per operation is unnecessary and, on some platforms, resets advisory locks
// held by the same process on a different descriptor.
type Lock struct {
	f *os.File
}

// Open opens (creating if absent) the lock file at path without acquiring
// any lock.
func Open(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304 -- path comes from the store's own directory
	if err != nil {
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Close releases any held lock (best effort) and closes the underlying file.
func (l *Lock) Close() error {
	_ = unlock(l.f)
	return l.f.Close()
}

// ExclusiveBlocking acquires an exclusive lock, blocking until it is
// available. Used by the write path (spec.md §4.2 "Append protocol").
func (l *Lock) ExclusiveBlocking() error {
	return lockExclusive(l.f, true)
}

// ExclusiveNonBlocking attempts to acquire an exclusive lock without
// blocking, returning ErrBusy if another process holds it.
func (l *Lock) ExclusiveNonBlocking() error {
	return lockExclusive(l.f, false)
}

// SharedBlocking acquires a shared lock, blocking until available. Used by
// incremental reimport (spec.md §4.3) to read the log tail without racing a
// concurrent writer's append.
func (l *Lock) SharedBlocking() error {
	return lockShared(l.f, true)
}

// SharedNonBlocking attempts to acquire a shared lock without blocking.
func (l *Lock) SharedNonBlocking() error {
	return lockShared(l.f, false)
}

// Unlock releases whatever lock this handle currently holds.
func (l *Lock) Unlock() error {
	return unlock(l.f)
}
