//go:build !unix && !windows

package filelock

import (
	"errors"
	"os"
)

// removeWhileHeld reports whether an open, locked file may be unlinked.
const removeWhileHeld = false

func lockFile(*os.File) error {
	return errors.New("file locking is not supported on this platform")
}

func unlockFile(*os.File) error {
	return nil
}
