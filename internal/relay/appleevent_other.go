//go:build !darwin || !cgo

package relay

import (
	"fmt"
	"runtime"
)

// WaitAppleEventURL is only available in darwin builds with cgo enabled.
func WaitAppleEventURL() (string, error) {
	return "", fmt.Errorf("apple events are not supported on %s (cgo required on darwin)", runtime.GOOS)
}
