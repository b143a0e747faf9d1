package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// LockFile is the name of the run lock inside the state directory.
const LockFile = ".hunter.lock"

// ErrLocked is returned when another run holds a fresh lock.
var ErrLocked = eris.New("state: another run holds the lock")

// Lock is an exclusive run lock backed by a file created with O_EXCL.
type Lock struct {
	path string
}

// AcquireLock takes the run lock in dir. A lock file older than ttl is
// treated as abandoned and replaced.
func AcquireLock(dir string, ttl time.Duration) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "state: create dir %s", dir)
	}
	path := filepath.Join(dir, LockFile)

	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, `{"pid":%d,"time":%d}`+"\n", os.Getpid(), time.Now().Unix())
			_ = f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, eris.Wrapf(err, "state: create lock %s", path)
		}

		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if time.Since(fi.ModTime()) < ttl {
			return nil, eris.Wrapf(ErrLocked, "lock %s held since %s", path, fi.ModTime().UTC().Format(time.RFC3339))
		}
		_ = os.Remove(path)
	}
	return nil, eris.Wrapf(ErrLocked, "lock %s contended", path)
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "state: release lock %s", l.path)
	}
	return nil
}
