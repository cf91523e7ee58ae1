// Package filelock provides the per-user lock that keeps two redirect
// captures from running at the same time. The lock is an OS advisory lock
// on a file, so it is released by the kernel if the holder dies.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

const retryInterval = 10 * time.Millisecond

// FileLock is an exclusive lock on path + ".lock".
type FileLock struct {
	path     string
	file     *os.File
	acquired bool
	mu       sync.Mutex
}

// New creates a new file lock
func New(path string) *FileLock {
	return &FileLock{
		path: path + ".lock",
	}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires the lock, retrying until timeout. A zero timeout makes a
// single attempt.
func (fl *FileLock) Lock(timeout time.Duration) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.acquired {
		return fmt.Errorf("lock already acquired")
	}

	if err := os.MkdirAll(filepath.Dir(fl.path), 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		file, err := fl.tryLock()
		if err == nil {
			fl.file = file
			fl.acquired = true
			return nil
		}
		if !errors.Is(err, ErrLocked) {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrLocked, fl.path)
		}
		time.Sleep(retryInterval)
	}
}

func (fl *FileLock) tryLock() (*os.File, error) {
	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, err
	}

	// The previous holder may have removed the file between our open and
	// lock; a lock on an unlinked file protects nothing.
	held, err := file.Stat()
	if err != nil {
		_ = unlockFile(file)
		_ = file.Close()
		return nil, err
	}
	current, err := os.Stat(fl.path)
	if err != nil || !os.SameFile(held, current) {
		_ = unlockFile(file)
		_ = file.Close()
		return nil, ErrLocked
	}

	_ = file.Truncate(0)
	_, _ = fmt.Fprintf(file, "%d\n", os.Getpid())
	return file, nil
}

// Unlock releases the file lock
func (fl *FileLock) Unlock() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if !fl.acquired {
		return nil // Already unlocked
	}

	var err error
	if removeWhileHeld {
		// Remove before unlocking so a waiter never locks a file that is
		// about to disappear.
		err = fl.removeFile()
		fl.release()
	} else {
		fl.release()
		// Another waiter may have the file open; it is reused next time.
		_ = fl.removeFile()
	}

	fl.acquired = false
	return err
}

func (fl *FileLock) release() {
	if fl.file == nil {
		return
	}
	_ = unlockFile(fl.file)
	_ = fl.file.Close()
	fl.file = nil
}

func (fl *FileLock) removeFile() error {
	if err := os.Remove(fl.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
