// Package lockfile serializes passes writing the same destination tree.
// Path-to-writer assignment is injective within one pass, but nothing stops
// a second verso process from racing the first; an advisory flock on a
// sibling lock file does.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Lock is a held destination lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock guarding dest. It fails immediately (no blocking)
// when another pass holds it.
func Acquire(dest string) (*Lock, error) {
	path := strings.TrimSuffix(filepath.Clean(dest), string(filepath.Separator)) + ".lock"

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("destination %s is locked by another pass", dest)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &Lock{file: f, path: path}, nil
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	err := l.file.Close()
	_ = os.Remove(l.path)
	return err
}
