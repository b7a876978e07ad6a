// Package lock implements the advisory file lock that gives a Hammersbald
// store exclusive ownership for its lifetime: a second process attempting
// to open the same store fails fast with herr.Locked rather than
// corrupting state by racing the first.
package lock

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/hammersbald/hammersbald/internal/herr"
)

const filePerm = 0o644

// Lock is a held exclusive advisory lock on a "<name>.lock" file.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if needed) path and takes a non-blocking
// exclusive flock on it, failing immediately with herr.Locked if another
// process already holds it. On success it overwrites the file's content
// with diagnostic information identifying the holder, purely for a human
// inspecting a stuck lock file — the lock itself is the flock, not the
// content.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, filePerm)
	if err != nil {
		return nil, herr.Io.Wrap(fmt.Errorf("open lock file %s: %w", path, err))
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, herr.Locked.Wrap(fmt.Errorf("%s is held by another process", path))
		}
		return nil, herr.Io.Wrap(fmt.Errorf("flock %s: %w", path, err))
	}

	if err := writeDiagnostics(f); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, err
	}

	return &Lock{file: f}, nil
}

func writeDiagnostics(f *os.File) error {
	host, _ := os.Hostname()
	content := fmt.Sprintf("pid=%d\nhost=%s\nsession=%s\n", os.Getpid(), host, uuid.NewString())
	if err := f.Truncate(0); err != nil {
		return herr.Io.Wrap(fmt.Errorf("truncate lock file: %w", err))
	}
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		return herr.Io.Wrap(fmt.Errorf("write lock file: %w", err))
	}
	return nil
}

// Release unlocks and closes the lock file. Idempotent.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return herr.Io.Wrap(fmt.Errorf("unlock: %w", unlockErr))
	}
	if closeErr != nil {
		return herr.Io.Wrap(fmt.Errorf("close lock file: %w", closeErr))
	}
	return nil
}
