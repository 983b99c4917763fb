package store

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// ErrLockTimeout is returned when a session's advisory lock could not be
// acquired within the configured wait. An unbounded block would let one
// stuck writer starve every later request for the same session.
var ErrLockTimeout = errors.New("session lock acquisition timed out")

const lockPollInterval = 25 * time.Millisecond

// fileLock is an exclusive advisory lock on a sidecar file, held for the
// duration of one read-modify-write. flock(2) makes it cross-process safe;
// the in-process mutex registry in SessionStore keeps goroutines of the
// same process from fighting over the flock.
type fileLock struct {
	path string
	file *os.File
}

// acquire creates the lock file if needed and polls for the exclusive lock
// until timeout. timeout <= 0 means a single non-blocking attempt.
func acquireFileLock(path string, timeout time.Duration) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &fileLock{path: path, file: f}, nil
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			f.Close()
			return nil, err
		}
		if !time.Now().Before(deadline) {
			f.Close()
			return nil, ErrLockTimeout
		}
		time.Sleep(lockPollInterval)
	}
}

// release unlocks and closes the lock file. The file itself stays on disk
// until the session is deleted.
func (l *fileLock) release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
