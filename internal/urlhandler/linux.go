package urlhandler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

const updateDesktopDatabase = "update-desktop-database"

type linuxRegistrar struct {
	dir string
	run Runner
}

func newLinuxRegistrar(opts Options) (*linuxRegistrar, error) {
	dir := opts.ApplicationsDir
	if dir == "" {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, apperrors.NewConfigurationError("cannot locate the applications directory").WithDetails(err.Error())
			}
			dataHome = filepath.Join(home, ".local", "share")
		}
		dir = filepath.Join(dataHome, "applications")
	}
	return &linuxRegistrar{dir: dir, run: opts.Runner}, nil
}

// DesktopEntry renders the desktop entry that routes scheme to cmd.
func DesktopEntry(scheme string, cmd relay.Command) string {
	return fmt.Sprintf(`[Desktop Entry]
Name=%s URL Handler
Exec=%s
NoDisplay=true
Type=Application
Terminal=false
MimeType=x-scheme-handler/%s;
`, scheme, cmd.DesktopExec(), scheme)
}

func (r *linuxRegistrar) Handle(scheme string) *Handle {
	return &Handle{
		Platform: "linux",
		Scheme:   scheme,
		Path:     filepath.Join(r.dir, handlerName(scheme)+".desktop"),
	}
}

func (r *linuxRegistrar) Register(scheme string, cmd relay.Command) (*Handle, error) {
	if err := ValidateScheme(scheme); err != nil {
		return nil, err
	}
	h := r.Handle(scheme)

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, apperrors.NewRegistrationError(err, "failed to create applications directory")
	}
	if err := os.WriteFile(h.Path, []byte(DesktopEntry(scheme, cmd)), 0644); err != nil {
		// a short write may have left a truncated entry behind
		_ = os.Remove(h.Path)
		return nil, apperrors.NewRegistrationError(err, "failed to write desktop entry")
	}

	refresh(r.run, updateDesktopDatabase, r.dir)
	return h, nil
}

func (r *linuxRegistrar) Cleanup(h *Handle) error {
	if h == nil {
		return nil
	}
	if err := os.Remove(h.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return apperrors.NewRegistrationError(err, "failed to remove desktop entry")
	}

	refresh(r.run, updateDesktopDatabase, filepath.Dir(h.Path))
	return nil
}

func (r *linuxRegistrar) Installed(scheme string) (bool, error) {
	return pathExists(r.Handle(scheme).Path)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
