//go:build !windows

package urlhandler

import (
	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

func newSystemKeyStore(string) (KeyStore, error) {
	return nil, apperrors.NewUnsupportedPlatformError("windows registry on non-windows host")
}
