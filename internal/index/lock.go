//go:build !windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock is held for the duration of an import into one data directory
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the import lock of dataDir on behalf of repo, creating
// the directory if needed. A lock held by another process yields a
// *LockedError.
func AcquireLock(dataDir, repo string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, lockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		info, _ := ReadLock(dataDir)
		return nil, &LockedError{Info: info}
	}

	l := &Lock{path: path, file: file}
	if err := file.Truncate(0); err != nil {
		l.Release()
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.WriteAt(newLockInfo(repo), 0); err != nil {
		l.Release()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return l, nil
}

// Release unlocks and removes the lock file. It is safe on a nil Lock.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = os.Remove(l.path)
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
