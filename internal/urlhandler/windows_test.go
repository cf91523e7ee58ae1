package urlhandler

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

// memStore is an in-memory KeyStore with injectable failures.
type memStore struct {
	keys       map[string]map[string]string
	failCreate string
	failSet    string
}

func newMemStore(existing ...string) *memStore {
	s := &memStore{keys: map[string]map[string]string{}}
	for _, k := range existing {
		s.keys[k] = map[string]string{}
	}
	return s
}

func (s *memStore) CreateKey(path string) (bool, error) {
	if path == s.failCreate {
		return false, errors.New("access denied")
	}
	if _, ok := s.keys[path]; ok {
		return true, nil
	}
	s.keys[path] = map[string]string{}
	return false, nil
}

func (s *memStore) SetString(path, name, value string) error {
	if path == s.failSet {
		return errors.New("access denied")
	}
	vals, ok := s.keys[path]
	if !ok {
		return ErrKeyNotFound
	}
	vals[name] = value
	return nil
}

func (s *memStore) GetString(path, name string) (string, error) {
	v, ok := s.keys[path][name]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) DeleteKey(path string) error {
	if _, ok := s.keys[path]; !ok {
		return ErrKeyNotFound
	}
	if busy, _ := s.HasSubKeys(path); busy {
		return errors.New("key has subkeys")
	}
	delete(s.keys, path)
	return nil
}

func (s *memStore) HasSubKeys(path string) (bool, error) {
	for k := range s.keys {
		if strings.HasPrefix(k, path+`\`) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Exists(path string) (bool, error) {
	_, ok := s.keys[path]
	return ok, nil
}

func (s *memStore) paths() []string {
	var out []string
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestWindowsRegisterWritesProtocolKeys(t *testing.T) {
	store := newMemStore(`Software\Classes`)
	r, err := New("windows", Options{KeyStore: store})
	require.NoError(t, err)

	cmd := relay.NewCommand(`C:\Program Files\switchbot-key\switchbot-key.exe`, "127.0.0.1:6000", "tok")
	h, err := r.Register("demo", cmd)
	require.NoError(t, err)
	assert.Equal(t, "windows", h.Platform)

	v, err := store.GetString(`Software\Classes\demo`, "")
	require.NoError(t, err)
	assert.Equal(t, "URL:demo Protocol", v)

	v, err = store.GetString(`Software\Classes\demo`, "URL Protocol")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = store.GetString(`Software\Classes\demo\shell\open\command`, "")
	require.NoError(t, err)
	assert.Equal(t, cmd.WindowsCommandLine(), v)

	installed, err := r.Installed("demo")
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestWindowsRoundTrip(t *testing.T) {
	store := newMemStore()
	r, err := New("windows", Options{KeyStore: store})
	require.NoError(t, err)

	l := newListener(t, "session-token")
	cmd := relay.NewCommand(`C:\Program Files\key\switchbot-key.exe`, l.Addr().String(), "session-token")
	_, err = r.Register("demo", cmd)
	require.NoError(t, err)

	line, err := store.GetString(`Software\Classes\demo\shell\open\command`, "")
	require.NoError(t, err)

	argv := relay.SplitWindowsCommandLine(line)
	assert.Equal(t, `C:\Program Files\key\switchbot-key.exe`, argv[0])

	const url = "demo://callback#access_token=xyz&state=s"
	deliverThroughListener(t, l, replaceField(argv, relay.WindowsURLField, url), url)
}

func TestWindowsCleanupRemovesOnlyOwnKeys(t *testing.T) {
	store := newMemStore(`Software\Classes`, `Software\Classes\other`)
	r, err := New("windows", Options{KeyStore: store})
	require.NoError(t, err)

	h, err := r.Register("demo", relay.NewCommand(`C:\x.exe`, "127.0.0.1:1", ""))
	require.NoError(t, err)

	require.NoError(t, r.Cleanup(h))
	assert.Equal(t, []string{`Software\Classes`, `Software\Classes\other`}, store.paths())

	require.NoError(t, r.Cleanup(h))
	require.NoError(t, r.Cleanup(nil))

	installed, err := r.Installed("demo")
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestWindowsCleanupStopsAtBusyAncestor(t *testing.T) {
	store := newMemStore()
	r, err := New("windows", Options{KeyStore: store})
	require.NoError(t, err)

	h, err := r.Register("demo", relay.NewCommand(`C:\x.exe`, "127.0.0.1:1", ""))
	require.NoError(t, err)
	// another verb registered by someone else under the same scheme
	store.keys[`Software\Classes\demo\shell\edit`] = map[string]string{}

	require.NoError(t, r.Cleanup(h))
	assert.Equal(t, []string{
		`Software\Classes\demo`,
		`Software\Classes\demo\shell`,
		`Software\Classes\demo\shell\edit`,
	}, store.paths())
}

func TestWindowsRegisterFailureRollsBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memStore)
	}{
		{"create fails", func(s *memStore) { s.failCreate = `Software\Classes\demo\shell\open` }},
		{"set fails", func(s *memStore) { s.failSet = `Software\Classes\demo\shell\open\command` }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(`Software\Classes`)
			tt.setup(store)
			r, err := New("windows", Options{KeyStore: store})
			require.NoError(t, err)

			_, err = r.Register("demo", relay.NewCommand(`C:\x.exe`, "127.0.0.1:1", ""))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.RegistrationError))
			assert.Equal(t, []string{`Software\Classes`}, store.paths())
		})
	}
}

func TestWindowsClassesRoot(t *testing.T) {
	store := newMemStore()
	r, err := New("windows", Options{KeyStore: store, WindowsRoot: "hkcr"})
	require.NoError(t, err)

	_, err = r.Register("demo", relay.NewCommand(`C:\x.exe`, "127.0.0.1:1", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`demo`,
		`demo\shell`,
		`demo\shell\open`,
		`demo\shell\open\command`,
	}, store.paths())
}

func TestWindowsUnknownRoot(t *testing.T) {
	_, err := New("windows", Options{KeyStore: newMemStore(), WindowsRoot: "HKLM"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ConfigurationError))
}
