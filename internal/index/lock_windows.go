//go:build windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is held for the duration of an import into one data directory.
// Windows has no flock; the lock file is created exclusively instead, so a
// crashed import leaves a lock that has to be removed by hand.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the import lock of dataDir on behalf of repo
func AcquireLock(dataDir, repo string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, lockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if os.IsExist(err) {
			info, _ := ReadLock(dataDir)
			return nil, &LockedError{Info: info}
		}
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if _, err := file.Write(newLockInfo(repo)); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{path: path, file: file}, nil
}

// Release removes the lock file. It is safe on a nil Lock.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
}
