package storage

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/privd/privd/internal/apperr"
)

// acquireLock takes a non-blocking exclusive flock on the database
// directory's lock file. A second daemon instance against the same
// directory fails immediately rather than blocking (§5: "a second daemon
// instance fails fast").
func (l *Layer) acquireLock() error {
	f, err := os.OpenFile(l.path(lockFileName), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return apperr.Wrap(apperr.CodeFileLockAcquire, lockFileName, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return apperr.Wrap(apperr.CodeFileLockAcquire, lockFileName, err)
	}
	l.lockFile = f
	return nil
}

func (l *Layer) releaseLock() error {
	if l.lockFile == nil {
		return nil
	}
	_ = unix.Flock(int(l.lockFile.Fd()), unix.LOCK_UN)
	err := l.lockFile.Close()
	l.lockFile = nil
	return err
}
