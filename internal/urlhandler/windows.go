package urlhandler

import (
	"errors"
	"strings"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

// ErrKeyNotFound is returned by a KeyStore for a missing key or value.
var ErrKeyNotFound = errors.New("registry key not found")

// KeyStore is the subset of the registry the windows backend needs. Paths
// are backslash separated and relative to the store's root key.
type KeyStore interface {
	// CreateKey opens or creates path and reports whether it already existed.
	CreateKey(path string) (existed bool, err error)
	SetString(path, name, value string) error
	GetString(path, name string) (string, error)
	// DeleteKey removes a key without subkeys.
	DeleteKey(path string) error
	HasSubKeys(path string) (bool, error)
	Exists(path string) (bool, error)
}

const (
	rootHKCU       = "HKCU"
	rootHKCR       = "HKCR"
	userClassesKey = `Software\Classes`
)

type windowsRegistrar struct {
	store  KeyStore
	prefix string
}

func newWindowsRegistrar(opts Options) (*windowsRegistrar, error) {
	root := strings.ToUpper(opts.WindowsRoot)
	if root == "" {
		root = rootHKCU
	}

	var prefix string
	switch root {
	case rootHKCU:
		prefix = userClassesKey + `\`
	case rootHKCR:
		prefix = ""
	default:
		return nil, apperrors.NewConfigurationError("unknown registry root").WithDetails(opts.WindowsRoot)
	}

	store := opts.KeyStore
	if store == nil {
		var err error
		store, err = newSystemKeyStore(root)
		if err != nil {
			return nil, err
		}
	}
	return &windowsRegistrar{store: store, prefix: prefix}, nil
}

// keyChain lists the scheme's keys from the scheme key down to the command key.
func (r *windowsRegistrar) keyChain(scheme string) []string {
	base := r.prefix + scheme
	return []string{
		base,
		base + `\shell`,
		base + `\shell\open`,
		base + `\shell\open\command`,
	}
}

func (r *windowsRegistrar) Handle(scheme string) *Handle {
	chain := r.keyChain(scheme)
	keys := make([]string, len(chain))
	for i, k := range chain {
		keys[len(chain)-1-i] = k
	}
	return &Handle{Platform: "windows", Scheme: scheme, Keys: keys}
}

func (r *windowsRegistrar) Register(scheme string, cmd relay.Command) (*Handle, error) {
	if err := ValidateScheme(scheme); err != nil {
		return nil, err
	}

	chain := r.keyChain(scheme)
	var created []string
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			_ = r.store.DeleteKey(created[i])
		}
	}

	for _, key := range chain {
		existed, err := r.store.CreateKey(key)
		if err != nil {
			rollback()
			return nil, apperrors.NewRegistrationError(err, "failed to create registry key").WithDetails(key)
		}
		if !existed {
			created = append(created, key)
		}
	}

	values := []struct{ key, name, value string }{
		{chain[0], "", "URL:" + scheme + " Protocol"},
		{chain[0], "URL Protocol", ""},
		{chain[3], "", cmd.WindowsCommandLine()},
	}
	for _, v := range values {
		if err := r.store.SetString(v.key, v.name, v.value); err != nil {
			rollback()
			return nil, apperrors.NewRegistrationError(err, "failed to set registry value").WithDetails(v.key)
		}
	}

	return r.Handle(scheme), nil
}

// Cleanup deletes the command key, then walks up removing ancestors that
// have no subkeys left.
func (r *windowsRegistrar) Cleanup(h *Handle) error {
	if h == nil || len(h.Keys) == 0 {
		return nil
	}

	if err := r.store.DeleteKey(h.Keys[0]); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return apperrors.NewRegistrationError(err, "failed to delete registry key").WithDetails(h.Keys[0])
	}

	for _, key := range h.Keys[1:] {
		exists, err := r.store.Exists(key)
		if err != nil {
			return apperrors.NewRegistrationError(err, "failed to open registry key").WithDetails(key)
		}
		if !exists {
			continue
		}
		busy, err := r.store.HasSubKeys(key)
		if err != nil {
			return apperrors.NewRegistrationError(err, "failed to inspect registry key").WithDetails(key)
		}
		if busy {
			return nil
		}
		if err := r.store.DeleteKey(key); err != nil && !errors.Is(err, ErrKeyNotFound) {
			return apperrors.NewRegistrationError(err, "failed to delete registry key").WithDetails(key)
		}
	}
	return nil
}

func (r *windowsRegistrar) Installed(scheme string) (bool, error) {
	return r.store.Exists(r.keyChain(scheme)[3])
}
