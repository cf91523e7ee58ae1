// Package urlhandler installs and removes a temporary OS association between
// a custom URI scheme and the relay command.
//
// One backend is chosen at startup from the platform name:
//
//   - linux: a desktop entry in the user's applications directory
//   - darwin: an application bundle with an Info.plist declaring the scheme
//   - windows: a URL protocol key chain in the registry
//
// On Windows the keys go under HKEY_CURRENT_USER\Software\Classes by default,
// which needs no elevation and shows up in the merged HKEY_CLASSES_ROOT view
// with the same values. Options.WindowsRoot "HKCR" writes to
// HKEY_CLASSES_ROOT directly.
//
// Every backend pairs Register with Cleanup. Cleanup is idempotent, and a
// Register that fails partway removes whatever it had already installed.
package urlhandler

import (
	"fmt"
	"log"
	"os/exec"
	"regexp"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

// Handle describes what a Register call installed. Callers pass it back to
// Cleanup without looking inside.
type Handle struct {
	Platform string
	Scheme   string
	// Path is the desktop entry file (linux) or bundle directory (darwin).
	Path string
	// Keys are registry key paths, leaf first (windows).
	Keys []string
}

// Registrar is the platform capability for scheme registration.
type Registrar interface {
	// Register associates scheme with cmd and returns the installed handle.
	Register(scheme string, cmd relay.Command) (*Handle, error)
	// Cleanup removes what Register installed. Missing artifacts are not an error.
	Cleanup(h *Handle) error
	// Handle describes the artifacts for scheme without touching the OS.
	Handle(scheme string) *Handle
	// Installed reports whether the artifact for scheme is present.
	Installed(scheme string) (bool, error)
}

// Runner executes an OS utility such as update-desktop-database.
type Runner func(name string, args ...string) error

// Options tune the backends. Zero values select the platform defaults.
type Options struct {
	// ApplicationsDir overrides the linux desktop entry directory.
	ApplicationsDir string
	// BundleDir overrides the darwin directory holding the .app bundle.
	BundleDir string
	// WindowsRoot selects "HKCU" (default) or "HKCR".
	WindowsRoot string
	// KeyStore replaces the real registry on windows.
	KeyStore KeyStore
	// Runner replaces exec for the cache refresh utilities.
	Runner Runner
}

// New returns the backend for goos, normally runtime.GOOS.
func New(goos string, opts Options) (Registrar, error) {
	if opts.Runner == nil {
		opts.Runner = runCommand
	}

	switch goos {
	case "linux":
		r, err := newLinuxRegistrar(opts)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "darwin":
		return newDarwinRegistrar(opts), nil
	case "windows":
		r, err := newWindowsRegistrar(opts)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, apperrors.NewUnsupportedPlatformError(goos)
	}
}

var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// ValidateScheme checks that scheme is usable as a URI scheme and as part of
// file, bundle and registry key names.
func ValidateScheme(scheme string) error {
	if !schemePattern.MatchString(scheme) || len(scheme) > 64 {
		return apperrors.NewValidationError("invalid URL scheme").WithDetails(scheme)
	}
	return nil
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

// refresh runs a cache refresh utility; failure is logged, never fatal.
func refresh(run Runner, name string, args ...string) {
	if err := run(name, args...); err != nil {
		log.Printf("Warning: failed to refresh handler cache: %v", err)
	}
}

func handlerName(scheme string) string {
	return scheme + "_url_handler"
}
