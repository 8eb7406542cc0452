package ytuploader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const lockOwnerFile = "owner.json"

// ErrLedgerLocked is returned when another live run holds the ledger.
var ErrLedgerLocked = errors.New("ledger is locked by another run")

// RunLock - exclusive ownership of a ledger for one run, held as the
// directory <ledger>.lock next to it.
type RunLock struct {
	dir string
}

// lockOwner is written into the lock directory so a later run can tell
// whether the holder is still alive.
type lockOwner struct {
	PID      int       `json:"pid"`
	Host     string    `json:"hostname,omitempty"`
	Acquired time.Time `json:"created_at"`
}

func (o lockOwner) String() string {
	return fmt.Sprintf("pid %d on %s since %s", o.PID, o.Host, o.Acquired.Format(time.RFC3339))
}

// processAlive is swapped in tests.
var processAlive = pidAlive

func lockHost() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

// AcquireRunLock takes the lock for the ledger at ledgerPath. A lock left by
// a process on this host that no longer exists is reclaimed.
func AcquireRunLock(ledgerPath string) (RunLock, error) {
	ledgerPath = strings.TrimSpace(ledgerPath)
	if ledgerPath == "" {
		return RunLock{}, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(ledgerPath), 0o755); err != nil {
		return RunLock{}, fmt.Errorf("create ledger directory: %w", err)
	}

	dir := ledgerPath + ".lock"
	err := os.Mkdir(dir, 0o755)
	if os.IsExist(err) {
		owner, ok := readLockOwner(dir)
		if !ok {
			return RunLock{}, fmt.Errorf("%w: %s has no readable owner (remove %s if stale)", ErrLedgerLocked, ledgerPath, dir)
		}
		if owner.Host != lockHost() || processAlive(owner.PID) {
			return RunLock{}, fmt.Errorf("%w: %s is held by %s", ErrLedgerLocked, ledgerPath, owner)
		}
		if err := reclaimLock(dir); err != nil {
			return RunLock{}, fmt.Errorf("reclaim stale lock %s left by %s: %w", dir, owner, err)
		}
		err = os.Mkdir(dir, 0o755)
	}
	if os.IsExist(err) {
		return RunLock{}, fmt.Errorf("%w: %s was taken while reclaiming a stale lock", ErrLedgerLocked, ledgerPath)
	}
	if err != nil {
		return RunLock{}, fmt.Errorf("create lock %s: %w", dir, err)
	}

	b, err := json.Marshal(lockOwner{PID: os.Getpid(), Host: lockHost(), Acquired: time.Now().UTC()})
	if err == nil {
		err = writeFileAtomic(filepath.Join(dir, lockOwnerFile), b, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return RunLock{}, fmt.Errorf("record lock owner in %s: %w", dir, err)
	}
	return RunLock{dir: dir}, nil
}

func readLockOwner(dir string) (lockOwner, bool) {
	var o lockOwner
	b, err := os.ReadFile(filepath.Join(dir, lockOwnerFile))
	if err != nil || json.Unmarshal(b, &o) != nil || o.PID <= 0 {
		return lockOwner{}, false
	}
	return o, true
}

// reclaimLock moves a dead run's lock aside before removing it, which frees
// the lock path in one step.
func reclaimLock(dir string) error {
	aside := fmt.Sprintf("%s.stale-%d-%d", dir, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(dir, aside); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.RemoveAll(aside)
}

// Release removes the lock. Releasing a zero RunLock is a no-op.
func (l RunLock) Release() error {
	if l.dir == "" {
		return nil
	}
	if err := os.RemoveAll(l.dir); err != nil {
		return fmt.Errorf("release run lock %s: %w", l.dir, err)
	}
	return nil
}
