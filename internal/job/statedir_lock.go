//go:build !windows

package job

import (
	"os"
	"syscall"
)

// stateDirLock is a non-blocking advisory file lock guarding retention
// sweeps against concurrent fleet manager processes sharing one state
// dir. A prior design guarded every scheduler tick with a lock like
// this; spec.md §4.9 already serializes ticks in-process, so this repo
// narrows the guard to retention, the one operation that deletes files
// other components read.
type stateDirLock struct {
	path string
	file *os.File
}

func newStateDirLock(path string) *stateDirLock {
	return &stateDirLock{path: path}
}

// tryLock attempts to acquire the lock without blocking. Returns true if
// acquired, false if another process already holds it.
func (l *stateDirLock) tryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return false, err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, err
	}

	l.file = f
	return true, nil
}

func (l *stateDirLock) unlock() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	l.file.Close()
	l.file = nil
	return nil
}
