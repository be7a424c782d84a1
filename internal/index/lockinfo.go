package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lockFile = "import.lock"

// LockInfo identifies the process importing into a data directory
type LockInfo struct {
	PID       int       `json:"pid"`
	Repo      string    `json:"repo"`
	StartedAt time.Time `json:"startedAt"`
}

// LockedError is returned when another import holds the lock. Info is nil
// when the holder could not be read.
type LockedError struct {
	Info *LockInfo
}

func (e *LockedError) Error() string {
	if e.Info == nil {
		return "an import into this repository is already running"
	}
	return fmt.Sprintf("repository %s is being imported by PID %d since %s",
		e.Info.Repo, e.Info.PID, e.Info.StartedAt.Format(time.RFC3339))
}

// ReadLock returns the holder of the import lock of dataDir, or nil when no
// import is running.
func ReadLock(dataDir string) (*LockInfo, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, lockFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	return &info, nil
}

func newLockInfo(repo string) []byte {
	data, _ := json.Marshal(LockInfo{PID: os.Getpid(), Repo: repo, StartedAt: time.Now().UTC()})
	return data
}
